// Package ocr extracts text from rectified document pages using Tesseract.
//
// This package wraps the Tesseract OCR engine (via gosseract/v2). Pages are
// passed in memory, either as encoded bytes (the JPEG produced by the scan
// pipeline) or as a decoded image, so no temporary files are written.
//
// # Prerequisites
//
// Tesseract and its language data must be installed on the system:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// # Languages
//
// The default language is English ("eng"). Several languages may be joined
// with '+', for example "eng+deu", exactly as on the tesseract command line.
//
// # Error Handling
//
// Recognition errors are returned wrapped. If word-level bounding boxes
// cannot be extracted, the text is still returned with an empty Words slice.
package ocr
