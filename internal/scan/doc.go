// Package scan turns a photograph of a paper document into a flat, cropped
// and sharpened page.
//
// The pipeline has four stages that run strictly in order, each producing a
// freshly allocated image:
//
//  1. Preprocess: BT.601 grayscale, 5x5 Gaussian blur, contrast stretch.
//  2. DetectQuad: Canny edge map, border-following contour extraction,
//     Douglas–Peucker approximation, and selection of the largest
//     four-vertex polygon.
//  3. Rectify: corner ordering, target size, homography and bilinear
//     inverse warp.
//  4. Enhance: 3x3 sharpen and JPEG encoding.
//
// A failure at any stage aborts the run with an *Error whose kind is one of
// ErrInvalidInput, ErrNotFound, ErrDegenerateGeometry or ErrEncodeFailure.
// ErrNotFound and ErrDegenerateGeometry mean the caller should fall back to
// manual corner selection (see Scanner.RectifyCorners).
//
// The stage functions are pure and a Scanner holds no mutable state, so all
// of them are safe for concurrent use.
package scan
