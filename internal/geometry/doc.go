// Package geometry holds the planar math behind document rectification:
// contour measures, Douglas–Peucker polygon approximation, canonical corner
// ordering of a quadrilateral and the 4-point homography used to flatten it.
//
// # Coordinate System
//
// Coordinates follow the image convention used across the repository:
// origin at the top-left corner, X increasing rightward and Y increasing
// downward. Contour vertices are integer pixel positions (image.Point);
// corners and homography inputs are float64 (Point) so that sub-pixel
// positions survive the transform.
//
// # Corner Order
//
// A Quad returned by OrderCorners is always TopLeft, TopRight, BottomRight,
// BottomLeft. Before ordering a Quad is just four candidate points.
package geometry
