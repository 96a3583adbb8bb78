package scan

import (
	"context"
	"image"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ironsheep/docscan-mcp/internal/detection"
	"github.com/ironsheep/docscan-mcp/internal/geometry"
	"github.com/ironsheep/docscan-mcp/internal/imaging"
	"github.com/ironsheep/docscan-mcp/internal/metrics"
)

const tracerName = "github.com/ironsheep/docscan-mcp/internal/scan"

// Result is a scanned page.
type Result struct {
	// ID identifies this scan; output files are named after it when no
	// explicit name is given.
	ID string `json:"id"`

	// Image holds the encoded JPEG.
	Image []byte `json:"-"`

	Width    int    `json:"width"`
	Height   int    `json:"height"`
	MIMEType string `json:"mime_type"`

	// Corners is the document outline in source image coordinates, ordered
	// top-left, top-right, bottom-right, bottom-left.
	Corners geometry.Quad `json:"corners"`

	// Truncated is set when contour tracing hit the limit. The result is
	// still valid but a larger outline may have been missed.
	Truncated bool `json:"truncated,omitempty"`
}

// Scanner runs the pipeline with logging, metrics and tracing around each
// stage. The zero value is not usable; create one with New.
type Scanner struct {
	logger      *slog.Logger
	metrics     *metrics.Recorder
	tracer      trace.Tracer
	maxContours int
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger sets the logger. Stage timings are logged at debug level and
// failures at warn.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Scanner) { s.metrics = m }
}

// WithTracer sets the tracer. The default comes from the global
// OpenTelemetry provider.
func WithTracer(t trace.Tracer) Option {
	return func(s *Scanner) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithMaxContours bounds contour tracing per image. Values <= 0 keep
// detection.DefaultMaxContours.
func WithMaxContours(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.maxContours = n
		}
	}
}

// New creates a Scanner.
func New(opts ...Option) *Scanner {
	s := &Scanner{
		logger:      slog.Default(),
		tracer:      otel.Tracer(tracerName),
		maxContours: detection.DefaultMaxContours,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan runs all four stages on img. ctx is checked between stages.
func (s *Scanner) Scan(ctx context.Context, img image.Image) (*Result, error) {
	return run(ctx, s, "Scan", func(ctx context.Context) (*Result, error) {
		return s.pipeline(ctx, img)
	})
}

// ScanBytes decodes data, applying EXIF orientation, and scans it.
// Undecodable data fails with ErrInvalidInput.
func (s *Scanner) ScanBytes(ctx context.Context, data []byte) (*Result, error) {
	return run(ctx, s, "ScanBytes", func(ctx context.Context) (*Result, error) {
		var img image.Image
		err := s.stage(ctx, StageDecode, func(context.Context) error {
			var err error
			img, err = imaging.DecodeBytes(data)
			if err != nil {
				return newError(StageDecode, ErrInvalidInput, err)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return s.pipeline(ctx, img)
	})
}

// RectifyCorners skips detection and rectifies img along corners chosen by
// the user, then enhances and encodes the page.
func (s *Scanner) RectifyCorners(ctx context.Context, img image.Image, corners geometry.Quad) (*Result, error) {
	return run(ctx, s, "RectifyCorners", func(ctx context.Context) (*Result, error) {
		return s.finish(ctx, img, corners, false)
	})
}

// Detect runs the first two stages only. Candidates in the result carry
// fill colors sampled from img.
func (s *Scanner) Detect(ctx context.Context, img image.Image) (*Detection, error) {
	return run(ctx, s, "Detect", func(ctx context.Context) (*Detection, error) {
		return s.detect(ctx, img, img)
	})
}

func (s *Scanner) pipeline(ctx context.Context, img image.Image) (*Result, error) {
	d, err := s.detect(ctx, img, nil)
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, img, d.Quad, d.Truncated)
}

func (s *Scanner) detect(ctx context.Context, img, src image.Image) (*Detection, error) {
	var gray *image.Gray
	err := s.stage(ctx, StagePreprocess, func(context.Context) error {
		var err error
		gray, err = Preprocess(img)
		return err
	})
	if err != nil {
		return nil, err
	}

	var d *Detection
	err = s.stage(ctx, StageDetect, func(ctx context.Context) error {
		var err error
		d, err = detect(gray, s.maxContours, src)
		if d != nil {
			s.metrics.RecordContours(d.Contours, len(d.Candidates), d.Truncated)
			trace.SpanFromContext(ctx).SetAttributes(
				attribute.Int("docscan.contours", d.Contours),
				attribute.Int("docscan.candidates", len(d.Candidates)),
				attribute.Bool("docscan.truncated", d.Truncated),
			)
			if d.Truncated {
				s.logger.Warn("contour limit reached", "limit", s.maxContours)
			}
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Scanner) finish(ctx context.Context, img image.Image, quad geometry.Quad, truncated bool) (*Result, error) {
	var (
		warped  *image.NRGBA
		ordered geometry.Quad
	)
	err := s.stage(ctx, StageRectify, func(context.Context) error {
		var err error
		warped, ordered, err = rectify(img, quad)
		return err
	})
	if err != nil {
		return nil, err
	}

	var page *EncodedImage
	err = s.stage(ctx, StageEnhance, func(context.Context) error {
		var err error
		page, err = Enhance(warped)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		ID:        uuid.NewString(),
		Image:     page.Data,
		Width:     page.Width,
		Height:    page.Height,
		MIMEType:  page.MIMEType,
		Corners:   ordered,
		Truncated: truncated,
	}, nil
}

// stage runs fn inside its own span and records its latency. The context is
// checked first so a cancelled request stops at the next stage boundary.
func (s *Scanner) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ctx, span := s.tracer.Start(ctx, "scan."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	s.metrics.RecordStage(name, elapsed)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	s.logger.Debug("stage complete", "stage", name, "duration", elapsed)
	return nil
}

// run wraps one public operation: a parent span, the outcome counter and a
// warning log on failure.
func run[T any](ctx context.Context, s *Scanner, op string, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := s.tracer.Start(ctx, "scan."+op)
	defer span.End()

	start := time.Now()
	out, err := fn(ctx)
	outcome := Outcome(err)
	s.metrics.RecordScan(outcome)
	span.SetAttributes(attribute.String("docscan.outcome", outcome))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn("scan failed", "op", op, "outcome", outcome, "error", err)
		var zero T
		return zero, err
	}
	s.logger.Debug("scan complete", "op", op, "duration", time.Since(start))
	return out, nil
}
