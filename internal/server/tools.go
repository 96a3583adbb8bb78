package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

var pathProperty = map[string]interface{}{
	"type":        "string",
	"description": "Absolute path to the image file",
}

var outputPathProperty = map[string]interface{}{
	"type":        "string",
	"description": "Where to write the JPEG. When omitted the page is returned as base64.",
}

var ocrProperties = map[string]interface{}{
	"ocr": map[string]interface{}{
		"type":        "boolean",
		"description": "Run Tesseract OCR on the rectified page",
		"default":     false,
	},
	"language": map[string]interface{}{
		"type":        "string",
		"description": "Tesseract language code(s), e.g. 'eng' or 'eng+deu'",
	},
}

func withProperties(base map[string]interface{}, extra map[string]interface{}) map[string]interface{} {
	props := make(map[string]interface{}, len(base)+len(extra))
	for k, v := range base {
		props[k] = v
	}
	for k, v := range extra {
		props[k] = v
	}
	return props
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	point := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"x": map[string]interface{}{"type": "number"},
			"y": map[string]interface{}{"type": "number"},
		},
		"required": []string{"x", "y"},
	}

	return []Tool{
		// Basic Image Information
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions and format.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_dimensions",
			Description: "Get the width and height of an image file.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
				},
				"required": []string{"path"},
			},
		},

		// Document Pipeline
		{
			Name: "document_scan",
			Description: "Find the document in a photo, correct its perspective and return a sharpened JPEG of the page. " +
				"Fails with 'not_found' when no four-cornered outline exists; fall back to document_rectify or image_crop.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withProperties(map[string]interface{}{
					"path":        pathProperty,
					"output_path": outputPathProperty,
				}, ocrProperties),
				"required": []string{"path"},
			},
		},
		{
			Name:        "document_detect",
			Description: "Locate the document outline without rectifying. Returns corners ordered top-left, top-right, bottom-right, bottom-left, the enclosed area and the output size a scan would produce.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"overlay": map[string]interface{}{
						"type":        "boolean",
						"description": "Also return the image with the outline drawn on it as base64 PNG",
						"default":     false,
					},
					"color": map[string]interface{}{
						"type":        "string",
						"description": "Outline color as hex (default: #00FF00)",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "document_candidates",
			Description: "List every four-cornered outline found in the image, largest first. Useful when the largest outline is not the page.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of candidates to return",
						"default":     10,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "document_rectify",
			Description: "Rectify the image along four corners you supply, in any order, then sharpen and encode the page. Use when detection fails or picks the wrong outline.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withProperties(map[string]interface{}{
					"path": pathProperty,
					"corners": map[string]interface{}{
						"type":        "array",
						"description": "Exactly four corner points in source image pixels",
						"items":       point,
						"minItems":    4,
						"maxItems":    4,
					},
					"output_path": outputPathProperty,
				}, ocrProperties),
				"required": []string{"path", "corners"},
			},
		},

		// Manual Fallbacks
		{
			Name:        "image_crop",
			Description: "Crop a rectangular region from an image and return it as base64-encoded PNG. Manual fallback when the page cannot be detected.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"x1": map[string]interface{}{
						"type":        "integer",
						"description": "Left edge X coordinate (0-based)",
					},
					"y1": map[string]interface{}{
						"type":        "integer",
						"description": "Top edge Y coordinate (0-based)",
					},
					"x2": map[string]interface{}{
						"type":        "integer",
						"description": "Right edge X coordinate (exclusive)",
					},
					"y2": map[string]interface{}{
						"type":        "integer",
						"description": "Bottom edge Y coordinate (exclusive)",
					},
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Scale factor for output (default: 1.0)",
						"default":     1.0,
					},
				},
				"required": []string{"path", "x1", "y1", "x2", "y2"},
			},
		},
		{
			Name:        "image_rotate",
			Description: "Rotate an image clockwise by 90, 180 or 270 degrees and return it as base64 PNG. Negative values rotate counterclockwise.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"degrees": map[string]interface{}{
						"type":        "integer",
						"description": "Rotation in degrees, a multiple of 90",
					},
				},
				"required": []string{"path", "degrees"},
			},
		},
		{
			Name:        "image_edge_detect",
			Description: "Return the Canny edge map the document detector works from. Helps explain why an outline was or was not found.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"threshold_low": map[string]interface{}{
						"type":        "integer",
						"description": "Lower hysteresis threshold (default: 75)",
						"default":     75,
					},
					"threshold_high": map[string]interface{}{
						"type":        "integer",
						"description": "Upper hysteresis threshold (default: 200)",
						"default":     200,
					},
				},
				"required": []string{"path"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
