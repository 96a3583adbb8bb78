package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ironsheep/docscan-mcp/internal/detection"
	"github.com/ironsheep/docscan-mcp/internal/geometry"
	"github.com/ironsheep/docscan-mcp/internal/imaging"
	"github.com/ironsheep/docscan-mcp/internal/ocr"
	"github.com/ironsheep/docscan-mcp/internal/scan"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "document_scan", "image_crop").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
// For pipeline failures the data string starts with the failure kind, e.g.
// "not_found: detect: not found: no 4-point contour located".
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.logger.Debug("Tool failed", "tool", params.Name, "error", err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", errorData(err))
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Basic Image Information
	case "image_load":
		return s.handleImageLoad(args)
	case "image_dimensions":
		return s.handleImageDimensions(args)

	// Document Pipeline
	case "document_scan":
		return s.handleDocumentScan(ctx, args)
	case "document_detect":
		return s.handleDocumentDetect(ctx, args)
	case "document_candidates":
		return s.handleDocumentCandidates(ctx, args)
	case "document_rectify":
		return s.handleDocumentRectify(ctx, args)

	// Manual Fallbacks
	case "image_crop":
		return s.handleImageCrop(args)
	case "image_rotate":
		return s.handleImageRotate(args)
	case "image_edge_detect":
		return s.handleImageEdgeDetect(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// errorData prefixes pipeline errors with their kind so clients can tell a
// missing outline apart from an unreadable file.
func errorData(err error) string {
	var se *scan.Error
	if errors.As(err, &se) {
		return scan.KindName(err) + ": " + err.Error()
	}
	return err.Error()
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Basic Image Information Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, a.Path)
}

// === Document Pipeline Handlers ===

type documentScanArgs struct {
	Path       string `json:"path"`
	OutputPath string `json:"output_path"`
	OCR        bool   `json:"ocr"`
	Language   string `json:"language"`
}

type documentScanResult struct {
	*scan.Result
	ImageBase64 string      `json:"image_base64,omitempty"`
	OutputPath  string      `json:"output_path,omitempty"`
	OCR         *ocr.Result `json:"ocr,omitempty"`
}

func (s *Server) handleDocumentScan(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a documentScanArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	res, err := s.scanner.Scan(ctx, img)
	if err != nil {
		return nil, err
	}
	return s.scanResult(res, a.OutputPath, a.OCR, a.Language)
}

// scanResult either writes the page to outputPath or inlines it as base64,
// then runs OCR on the encoded page when asked.
func (s *Server) scanResult(res *scan.Result, outputPath string, withOCR bool, language string) (*documentScanResult, error) {
	out := &documentScanResult{Result: res}
	if outputPath != "" {
		if err := writeFile(outputPath, res.Image); err != nil {
			return nil, err
		}
		// A cached decode of a file we just replaced is stale.
		s.cache.Evict(outputPath)
		out.OutputPath = outputPath
	} else {
		out.ImageBase64 = base64.StdEncoding.EncodeToString(res.Image)
	}

	if withOCR {
		if language == "" {
			language = s.language
		}
		text, err := s.recognize(res.Image, language)
		if err != nil {
			return nil, fmt.Errorf("ocr failed: %w", err)
		}
		out.OCR = text
	}
	return out, nil
}

type documentDetectArgs struct {
	Path    string `json:"path"`
	Overlay bool   `json:"overlay"`
	Color   string `json:"color"`
}

type documentDetectResult struct {
	Corners   geometry.Quad          `json:"corners"`
	Area      float64                `json:"area"`
	Width     int                    `json:"target_width"`
	Height    int                    `json:"target_height"`
	Contours  int                    `json:"contours"`
	Truncated bool                   `json:"truncated,omitempty"`
	Overlay   *imaging.EncodedResult `json:"overlay,omitempty"`
}

func (s *Server) handleDocumentDetect(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a documentDetectArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Color == "" {
		a.Color = s.overlayColor
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	d, err := s.scanner.Detect(ctx, img)
	if err != nil {
		return nil, err
	}
	ordered, err := d.Ordered()
	if err != nil {
		return nil, err
	}

	w, h := ordered.TargetSize()
	out := &documentDetectResult{
		Corners:   ordered,
		Area:      d.Area,
		Width:     w,
		Height:    h,
		Contours:  d.Contours,
		Truncated: d.Truncated,
	}
	if a.Overlay {
		out.Overlay, err = imaging.QuadOverlay(img, ordered, a.Color)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

type documentCandidatesArgs struct {
	Path  string `json:"path"`
	Limit int    `json:"limit"`
}

type documentCandidatesResult struct {
	Candidates []detection.QuadCandidate `json:"candidates"`
	Count      int                       `json:"count"`
	Contours   int                       `json:"contours"`
	Truncated  bool                      `json:"truncated,omitempty"`
}

// handleDocumentCandidates lists every four-vertex outline. An image with
// none yields an empty list rather than an error.
func (s *Server) handleDocumentCandidates(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a documentCandidatesArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Limit == 0 {
		a.Limit = 10
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	d, err := s.scanner.Detect(ctx, img)
	if errors.Is(err, scan.ErrNotFound) {
		return &documentCandidatesResult{Candidates: []detection.QuadCandidate{}}, nil
	}
	if err != nil {
		return nil, err
	}

	ranked := detection.RankByArea(d.Candidates, a.Limit)
	return &documentCandidatesResult{
		Candidates: ranked,
		Count:      len(ranked),
		Contours:   d.Contours,
		Truncated:  d.Truncated,
	}, nil
}

type documentRectifyArgs struct {
	Path       string           `json:"path"`
	Corners    []geometry.Point `json:"corners"`
	OutputPath string           `json:"output_path"`
	OCR        bool             `json:"ocr"`
	Language   string           `json:"language"`
}

func (s *Server) handleDocumentRectify(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a documentRectifyArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if len(a.Corners) != 4 {
		return nil, fmt.Errorf("expected 4 corners, got %d", len(a.Corners))
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	var q geometry.Quad
	copy(q[:], a.Corners)

	res, err := s.scanner.RectifyCorners(ctx, img, q)
	if err != nil {
		return nil, err
	}
	return s.scanResult(res, a.OutputPath, a.OCR, a.Language)
}

// === Manual Fallback Handlers ===

type imageCropArgs struct {
	Path  string  `json:"path"`
	X1    int     `json:"x1"`
	Y1    int     `json:"y1"`
	X2    int     `json:"x2"`
	Y2    int     `json:"y2"`
	Scale float64 `json:"scale"`
}

func (s *Server) handleImageCrop(args json.RawMessage) (interface{}, error) {
	var a imageCropArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.Crop(img, a.X1, a.Y1, a.X2, a.Y2, a.Scale)
}

type imageRotateArgs struct {
	Path    string `json:"path"`
	Degrees int    `json:"degrees"`
}

func (s *Server) handleImageRotate(args json.RawMessage) (interface{}, error) {
	var a imageRotateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.RotateEncoded(img, a.Degrees)
}

type imageEdgeDetectArgs struct {
	Path          string `json:"path"`
	ThresholdLow  int    `json:"threshold_low"`
	ThresholdHigh int    `json:"threshold_high"`
}

func (s *Server) handleImageEdgeDetect(args json.RawMessage) (interface{}, error) {
	var a imageEdgeDetectArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.ThresholdLow == 0 {
		a.ThresholdLow = imaging.DefaultCannyLow
	}
	if a.ThresholdHigh == 0 {
		a.ThresholdHigh = imaging.DefaultCannyHigh
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.EdgeDetect(img, a.ThresholdLow, a.ThresholdHigh)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
