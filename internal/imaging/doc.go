// Package imaging holds the pixel-level operations behind the scanner:
// loading with EXIF orientation, grayscale conversion, 5x5 Gaussian blur,
// contrast stretching, Canny edge detection, perspective warping, sharpening
// and JPEG encoding. It also provides the manual fallbacks (crop, rotate) and
// quad overlays used by the CLI and MCP server.
//
// # Coordinate System
//
// All pixel coordinates are 0-based with (0,0) at the top-left corner, X
// increasing rightward and Y downward. For regions, (x1,y1) is inclusive and
// (x2,y2) is exclusive.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. Every other function allocates its
// own output and never modifies its input.
package imaging
