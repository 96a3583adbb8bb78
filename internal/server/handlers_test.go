package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/docscan-mcp/internal/ocr"
)

// createTestImageFile creates a test image file and returns its path
func createTestImageFile(t *testing.T, width, height int, c color.Color) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
	return writeTestPNG(t, img)
}

// createDocumentImageFile draws a light page at (40,30)-(200,170) on a
// dark 240x200 background.
func createDocumentImageFile(t *testing.T) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 240, 200))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.RGBA{30, 30, 30, 255}}, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(40, 30, 200, 170), &image.Uniform{color.RGBA{220, 220, 220, 255}}, image.Point{}, draw.Src)
	return writeTestPNG(t, img)
}

func writeTestPNG(t *testing.T, img image.Image) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "handler-test.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

// callTool sends a tools/call request through handleRequest.
func callTool(t *testing.T, s *Server, name string, args map[string]interface{}) *MCPResponse {
	t.Helper()

	params := map[string]interface{}{
		"name":      name,
		"arguments": args,
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("failed to marshal params: %v", err)
	}

	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  paramsJSON,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	return resp
}

// decodeContent unmarshals the JSON text of a successful tool response.
func decodeContent(t *testing.T, resp *MCPResponse, v interface{}) {
	t.Helper()

	if resp.Error != nil {
		t.Fatalf("Unexpected error: %+v", resp.Error)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	content, ok := result["content"].([]map[string]interface{})
	if !ok || len(content) != 1 {
		t.Fatalf("content: got %#v", result["content"])
	}
	if content[0]["type"] != "text" {
		t.Errorf("content type: got %v, want text", content[0]["type"])
	}
	text, _ := content[0]["text"].(string)
	if err := json.Unmarshal([]byte(text), v); err != nil {
		t.Fatalf("content is not JSON: %v", err)
	}
}

func near(got, want, tol float64) bool {
	return math.Abs(got-want) <= tol
}

func TestHandleToolsCall_ImageLoad(t *testing.T) {
	s := newTestServer()
	imgPath := createTestImageFile(t, 100, 80, color.RGBA{255, 0, 0, 255})

	var info struct {
		Width  int    `json:"width"`
		Height int    `json:"height"`
		Format string `json:"format"`
	}
	decodeContent(t, callTool(t, s, "image_load", map[string]interface{}{"path": imgPath}), &info)

	if info.Width != 100 || info.Height != 80 {
		t.Errorf("size: got %dx%d, want 100x80", info.Width, info.Height)
	}
	if info.Format != "png" {
		t.Errorf("format: got %s, want png", info.Format)
	}
}

func TestHandleToolsCall_ImageDimensions(t *testing.T) {
	s := newTestServer()
	imgPath := createTestImageFile(t, 200, 150, color.RGBA{0, 255, 0, 255})

	var dims struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	}
	decodeContent(t, callTool(t, s, "image_dimensions", map[string]interface{}{"path": imgPath}), &dims)

	if dims.Width != 200 || dims.Height != 150 {
		t.Errorf("size: got %dx%d, want 200x150", dims.Width, dims.Height)
	}
}

func TestHandleToolsCall_NonExistentFile(t *testing.T) {
	s := newTestServer()

	resp := callTool(t, s, "image_load", map[string]interface{}{"path": "/nonexistent/file.png"})

	if resp.Error == nil {
		t.Fatal("Expected error for non-existent file")
	}
	if resp.Error.Code != -32000 {
		t.Errorf("Error code: got %d, want -32000", resp.Error.Code)
	}
}

func TestHandleToolsCall_InvalidTool(t *testing.T) {
	s := newTestServer()

	resp := callTool(t, s, "nonexistent_tool", map[string]interface{}{})

	if resp.Error == nil {
		t.Fatal("Expected error for unknown tool")
	}
	data, _ := resp.Error.Data.(string)
	if !strings.Contains(data, "unknown tool") {
		t.Errorf("Error data: got %q", data)
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := newTestServer()

	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  json.RawMessage(`"not an object"`),
	})

	if resp.Error == nil {
		t.Fatal("Expected error for invalid params")
	}
	if resp.Error.Code != -32602 {
		t.Errorf("Error code: got %d, want -32602", resp.Error.Code)
	}
}

func TestHandleToolsCall_DocumentScan(t *testing.T) {
	s := newTestServer()
	imgPath := createDocumentImageFile(t)

	var res struct {
		ID          string `json:"id"`
		Width       int    `json:"width"`
		Height      int    `json:"height"`
		MIMEType    string `json:"mime_type"`
		ImageBase64 string `json:"image_base64"`
		Corners     [4]struct {
			X float64 `json:"x"`
			Y float64 `json:"y"`
		} `json:"corners"`
	}
	decodeContent(t, callTool(t, s, "document_scan", map[string]interface{}{"path": imgPath}), &res)

	if res.ID == "" {
		t.Error("scan id should be set")
	}
	if res.MIMEType != "image/jpeg" {
		t.Errorf("mime_type: got %s, want image/jpeg", res.MIMEType)
	}
	if !near(float64(res.Width), 160, 4) || !near(float64(res.Height), 140, 4) {
		t.Errorf("size: got %dx%d, want about 160x140", res.Width, res.Height)
	}
	if !near(res.Corners[0].X, 40, 3) || !near(res.Corners[0].Y, 30, 3) {
		t.Errorf("top-left corner: got (%v,%v), want about (40,30)", res.Corners[0].X, res.Corners[0].Y)
	}

	data, err := base64.StdEncoding.DecodeString(res.ImageBase64)
	if err != nil {
		t.Fatalf("image_base64 is not base64: %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("image is not a JPEG: %v", err)
	}
	if cfg.Width != res.Width || cfg.Height != res.Height {
		t.Errorf("encoded size %dx%d does not match reported %dx%d", cfg.Width, cfg.Height, res.Width, res.Height)
	}
}

func TestHandleToolsCall_DocumentScan_OutputPathAndOCR(t *testing.T) {
	s := newTestServer(WithOCRLanguage("deu"))
	var gotLang string
	s.recognize = func(data []byte, language string) (*ocr.Result, error) {
		gotLang = language
		return &ocr.Result{Text: "hello", Language: language}, nil
	}
	imgPath := createDocumentImageFile(t)
	outPath := filepath.Join(t.TempDir(), "nested", "page.jpg")

	var res struct {
		ImageBase64 string     `json:"image_base64"`
		OutputPath  string     `json:"output_path"`
		OCR         ocr.Result `json:"ocr"`
	}
	decodeContent(t, callTool(t, s, "document_scan", map[string]interface{}{
		"path":        imgPath,
		"output_path": outPath,
		"ocr":         true,
	}), &res)

	if res.OutputPath != outPath {
		t.Errorf("output_path: got %s, want %s", res.OutputPath, outPath)
	}
	if res.ImageBase64 != "" {
		t.Error("image should not be inlined when written to disk")
	}
	if _, err := os.Stat(outPath); err != nil {
		t.Errorf("output file missing: %v", err)
	}
	if res.OCR.Text != "hello" {
		t.Errorf("ocr text: got %q, want hello", res.OCR.Text)
	}
	if gotLang != "deu" {
		t.Errorf("ocr language: got %s, want server default deu", gotLang)
	}
}

func TestHandleToolsCall_DocumentScan_ReplacesCachedOutput(t *testing.T) {
	s := newTestServer()
	imgPath := createDocumentImageFile(t)
	outPath := createTestImageFile(t, 50, 50, color.RGBA{0, 0, 255, 255})

	type size struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	}
	var before size
	decodeContent(t, callTool(t, s, "image_dimensions", map[string]interface{}{"path": outPath}), &before)
	if before.Width != 50 || before.Height != 50 {
		t.Fatalf("size: got %dx%d, want 50x50", before.Width, before.Height)
	}

	var res struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	}
	decodeContent(t, callTool(t, s, "document_scan", map[string]interface{}{
		"path":        imgPath,
		"output_path": outPath,
	}), &res)

	var after size
	decodeContent(t, callTool(t, s, "image_dimensions", map[string]interface{}{"path": outPath}), &after)
	if after.Width != res.Width || after.Height != res.Height {
		t.Errorf("size after scan: got %dx%d, want the written page %dx%d", after.Width, after.Height, res.Width, res.Height)
	}
}

func TestHandleToolsCall_DocumentScan_NotFound(t *testing.T) {
	s := newTestServer()
	imgPath := createTestImageFile(t, 120, 90, color.RGBA{128, 128, 128, 255})

	resp := callTool(t, s, "document_scan", map[string]interface{}{"path": imgPath})

	if resp.Error == nil {
		t.Fatal("Expected error for image without a document")
	}
	if resp.Error.Code != -32000 {
		t.Errorf("Error code: got %d, want -32000", resp.Error.Code)
	}
	data, _ := resp.Error.Data.(string)
	if !strings.HasPrefix(data, "not_found: ") {
		t.Errorf("Error data should start with the failure kind, got %q", data)
	}
}

func TestHandleToolsCall_DocumentDetect(t *testing.T) {
	s := newTestServer()
	imgPath := createDocumentImageFile(t)

	var res struct {
		Corners [4]struct {
			X float64 `json:"x"`
			Y float64 `json:"y"`
		} `json:"corners"`
		Area    float64 `json:"area"`
		Width   int     `json:"target_width"`
		Height  int     `json:"target_height"`
		Overlay *struct {
			Width       int    `json:"width"`
			ImageBase64 string `json:"image_base64"`
		} `json:"overlay"`
	}
	decodeContent(t, callTool(t, s, "document_detect", map[string]interface{}{
		"path":    imgPath,
		"overlay": true,
	}), &res)

	want := [4][2]float64{{40, 30}, {200, 30}, {200, 170}, {40, 170}}
	for i, w := range want {
		if !near(res.Corners[i].X, w[0], 3) || !near(res.Corners[i].Y, w[1], 3) {
			t.Errorf("corner %d: got (%v,%v), want about (%v,%v)", i, res.Corners[i].X, res.Corners[i].Y, w[0], w[1])
		}
	}
	if !near(res.Area, 160*140, 160*140*0.05) {
		t.Errorf("area: got %v, want about %v", res.Area, 160*140)
	}
	if res.Overlay == nil || res.Overlay.ImageBase64 == "" {
		t.Fatal("overlay requested but missing")
	}
	if res.Overlay.Width != 240 {
		t.Errorf("overlay width: got %d, want 240", res.Overlay.Width)
	}
}

func TestHandleToolsCall_DocumentDetect_BadColor(t *testing.T) {
	s := newTestServer()
	imgPath := createDocumentImageFile(t)

	resp := callTool(t, s, "document_detect", map[string]interface{}{
		"path":    imgPath,
		"overlay": true,
		"color":   "green",
	})
	if resp.Error == nil {
		t.Error("Expected error for invalid overlay color")
	}
}

func TestHandleToolsCall_DocumentCandidates(t *testing.T) {
	s := newTestServer()
	imgPath := createDocumentImageFile(t)

	var res struct {
		Candidates []struct {
			Area float64 `json:"area"`
		} `json:"candidates"`
		Count int `json:"count"`
	}
	decodeContent(t, callTool(t, s, "document_candidates", map[string]interface{}{"path": imgPath}), &res)

	if res.Count == 0 || len(res.Candidates) != res.Count {
		t.Fatalf("candidates: count %d, got %d entries", res.Count, len(res.Candidates))
	}
	for i := 1; i < len(res.Candidates); i++ {
		if res.Candidates[i].Area > res.Candidates[i-1].Area {
			t.Errorf("candidates not sorted by area at %d", i)
		}
	}
}

func TestHandleToolsCall_DocumentCandidates_NoneFound(t *testing.T) {
	s := newTestServer()
	imgPath := createTestImageFile(t, 120, 90, color.RGBA{128, 128, 128, 255})

	var res struct {
		Candidates []interface{} `json:"candidates"`
		Count      int           `json:"count"`
	}
	decodeContent(t, callTool(t, s, "document_candidates", map[string]interface{}{"path": imgPath}), &res)

	if res.Candidates == nil || len(res.Candidates) != 0 || res.Count != 0 {
		t.Errorf("expected an empty candidate list, got %+v", res)
	}
}

func TestHandleToolsCall_DocumentRectify(t *testing.T) {
	s := newTestServer()
	imgPath := createTestImageFile(t, 200, 160, color.RGBA{200, 200, 200, 255})

	var res struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	}
	// Corners in scrambled order
	decodeContent(t, callTool(t, s, "document_rectify", map[string]interface{}{
		"path": imgPath,
		"corners": []map[string]float64{
			{"x": 150, "y": 110}, {"x": 30, "y": 20}, {"x": 30, "y": 110}, {"x": 150, "y": 20},
		},
	}), &res)

	if res.Width != 120 || res.Height != 90 {
		t.Errorf("size: got %dx%d, want 120x90", res.Width, res.Height)
	}
}

func TestHandleToolsCall_DocumentRectify_Errors(t *testing.T) {
	s := newTestServer()
	imgPath := createTestImageFile(t, 200, 160, color.RGBA{200, 200, 200, 255})

	tests := []struct {
		name     string
		corners  []map[string]float64
		wantKind string
	}{
		{
			"three corners",
			[]map[string]float64{{"x": 0, "y": 0}, {"x": 10, "y": 0}, {"x": 10, "y": 10}},
			"",
		},
		{
			"collinear",
			[]map[string]float64{{"x": 0, "y": 0}, {"x": 10, "y": 10}, {"x": 20, "y": 20}, {"x": 30, "y": 30}},
			"degenerate_geometry: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := callTool(t, s, "document_rectify", map[string]interface{}{
				"path":    imgPath,
				"corners": tt.corners,
			})
			if resp.Error == nil {
				t.Fatal("Expected error")
			}
			data, _ := resp.Error.Data.(string)
			if tt.wantKind != "" && !strings.HasPrefix(data, tt.wantKind) {
				t.Errorf("Error data: got %q, want prefix %q", data, tt.wantKind)
			}
		})
	}
}

func TestHandleToolsCall_Crop(t *testing.T) {
	s := newTestServer()
	imgPath := createTestImageFile(t, 100, 100, color.RGBA{128, 128, 128, 255})

	tests := []struct {
		name       string
		scale      float64
		wantWidth  int
		wantHeight int
	}{
		{"default scale", 0, 40, 30},
		{"double", 2.0, 80, 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := map[string]interface{}{
				"path": imgPath,
				"x1":   10, "y1": 20, "x2": 50, "y2": 50,
			}
			if tt.scale != 0 {
				args["scale"] = tt.scale
			}
			var res struct {
				Width  int `json:"width"`
				Height int `json:"height"`
			}
			decodeContent(t, callTool(t, s, "image_crop", args), &res)
			if res.Width != tt.wantWidth || res.Height != tt.wantHeight {
				t.Errorf("size: got %dx%d, want %dx%d", res.Width, res.Height, tt.wantWidth, tt.wantHeight)
			}
		})
	}
}

func TestHandleToolsCall_Rotate(t *testing.T) {
	s := newTestServer()
	imgPath := createTestImageFile(t, 100, 60, color.RGBA{128, 128, 128, 255})

	tests := []struct {
		degrees    int
		wantWidth  int
		wantHeight int
	}{
		{90, 60, 100},
		{180, 100, 60},
		{-90, 60, 100},
	}

	for _, tt := range tests {
		var res struct {
			Width  int `json:"width"`
			Height int `json:"height"`
		}
		decodeContent(t, callTool(t, s, "image_rotate", map[string]interface{}{
			"path":    imgPath,
			"degrees": tt.degrees,
		}), &res)
		if res.Width != tt.wantWidth || res.Height != tt.wantHeight {
			t.Errorf("degrees %d: got %dx%d, want %dx%d", tt.degrees, res.Width, res.Height, tt.wantWidth, tt.wantHeight)
		}
	}

	resp := callTool(t, s, "image_rotate", map[string]interface{}{"path": imgPath, "degrees": 45})
	if resp.Error == nil {
		t.Error("Expected error for 45 degree rotation")
	}
}

func TestHandleToolsCall_EdgeDetect(t *testing.T) {
	s := newTestServer()
	imgPath := createDocumentImageFile(t)

	var res struct {
		Width      int `json:"width"`
		EdgePixels int `json:"edge_pixels"`
	}
	decodeContent(t, callTool(t, s, "image_edge_detect", map[string]interface{}{"path": imgPath}), &res)

	if res.Width != 240 {
		t.Errorf("width: got %d, want 240", res.Width)
	}
	if res.EdgePixels == 0 {
		t.Error("expected edges around the page")
	}

	resp := callTool(t, s, "image_edge_detect", map[string]interface{}{
		"path":           imgPath,
		"threshold_low":  150,
		"threshold_high": 50,
	})
	if resp.Error == nil {
		t.Error("Expected error for inverted thresholds")
	}
}

func TestExecuteTool_AllTools(t *testing.T) {
	s := newTestServer()
	s.recognize = func([]byte, string) (*ocr.Result, error) { return &ocr.Result{}, nil }
	imgPath := createDocumentImageFile(t)

	tests := []struct {
		name string
		args string
	}{
		{"image_load", `{"path":"` + imgPath + `"}`},
		{"image_dimensions", `{"path":"` + imgPath + `"}`},
		{"document_scan", `{"path":"` + imgPath + `","ocr":true}`},
		{"document_detect", `{"path":"` + imgPath + `"}`},
		{"document_candidates", `{"path":"` + imgPath + `","limit":1}`},
		{"document_rectify", `{"path":"` + imgPath + `","corners":[{"x":40,"y":30},{"x":200,"y":30},{"x":200,"y":170},{"x":40,"y":170}]}`},
		{"image_crop", `{"path":"` + imgPath + `","x1":0,"y1":0,"x2":10,"y2":10}`},
		{"image_rotate", `{"path":"` + imgPath + `","degrees":270}`},
		{"image_edge_detect", `{"path":"` + imgPath + `"}`},
	}

	if len(tests) != len(GetToolDefinitions()) {
		t.Fatalf("test covers %d tools, catalogue has %d", len(tests), len(GetToolDefinitions()))
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.executeTool(context.Background(), tt.name, json.RawMessage(tt.args))
			if err != nil {
				t.Fatalf("executeTool(%s) failed: %v", tt.name, err)
			}
			if result == nil {
				t.Errorf("executeTool(%s) returned nil result", tt.name)
			}
		})
	}
}

func TestExecuteTool_UnknownTool(t *testing.T) {
	s := newTestServer()

	_, err := s.executeTool(context.Background(), "unknown_tool", json.RawMessage(`{}`))
	if err == nil {
		t.Error("Expected error for unknown tool")
	}
}

func TestExecuteTool_InvalidJSON(t *testing.T) {
	s := newTestServer()

	for _, tool := range GetToolDefinitions() {
		_, err := s.executeTool(context.Background(), tool.Name, json.RawMessage(`{invalid json}`))
		if err == nil {
			t.Errorf("%s: expected error for invalid JSON", tool.Name)
		}
	}
}

func TestErrorData(t *testing.T) {
	s := newTestServer()
	_, err := s.scanner.ScanBytes(context.Background(), []byte("not an image"))
	if err == nil {
		t.Fatal("expected decode failure")
	}
	if got := errorData(err); !strings.HasPrefix(got, "invalid_input: ") {
		t.Errorf("errorData: got %q", got)
	}
	if got := errorData(os.ErrNotExist); got != os.ErrNotExist.Error() {
		t.Errorf("plain errors should pass through, got %q", got)
	}
}
