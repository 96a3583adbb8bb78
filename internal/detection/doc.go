// Package detection finds document outline candidates in a binary edge map.
//
// FindContours traces region borders (Suzuki–Abe) in raster discovery order
// and stops at a configurable limit. FindQuads approximates each border with
// a closed Douglas–Peucker polygon and keeps those with exactly four
// vertices; Largest and RankByArea choose among them.
//
// Ties in area are broken by enumeration order, so results are deterministic
// for a given edge map.
package detection
