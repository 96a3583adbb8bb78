// Package batch scans many files with a bounded pool of workers and writes
// each page next to its input or into an output directory.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/docscan-mcp/internal/geometry"
	"github.com/ironsheep/docscan-mcp/internal/imaging"
	"github.com/ironsheep/docscan-mcp/internal/metrics"
	"github.com/ironsheep/docscan-mcp/internal/ocr"
	"github.com/ironsheep/docscan-mcp/internal/scan"
)

// uniquePrefix names outputs that would otherwise overwrite a file.
const uniquePrefix = "processed-"

// Recognizer extracts text from an encoded page.
type Recognizer func(data []byte, language string) (*ocr.Result, error)

// Options controls a Runner.
type Options struct {
	// Workers bounds concurrent scans. Values <= 0 use runtime.NumCPU.
	Workers int

	// OutputDir receives pages. Empty writes next to each input.
	OutputDir string

	// Suffix is appended to the input stem. Empty means "_scan".
	Suffix string

	// Overwrite replaces existing outputs instead of picking a unique name.
	Overwrite bool

	// OCR also writes the recognized text to <stem><suffix>.txt.
	OCR      bool
	Language string

	// Source labels metrics, e.g. "batch" or "watch".
	Source string
}

// Outcome is the result for one input file.
type Outcome struct {
	ID       string        `json:"id"`
	Input    string        `json:"input"`
	Output   string        `json:"output,omitempty"`
	TextFile string        `json:"text_file,omitempty"`
	Width    int           `json:"width,omitempty"`
	Height   int           `json:"height,omitempty"`
	Corners  geometry.Quad `json:"corners"`
	Kind     string        `json:"kind"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`

	// Err is the failure, if any. Kind and Error carry it for JSON output.
	Err error `json:"-"`
}

// OK reports whether the file was scanned.
func (o Outcome) OK() bool { return o.Err == nil }

// Runner scans files.
type Runner struct {
	scanner   *scan.Scanner
	opts      Options
	logger    *slog.Logger
	metrics   *metrics.Recorder
	recognize Recognizer
}

// NewRunner creates a Runner. logger may be nil.
func NewRunner(s *scan.Scanner, opts Options, logger *slog.Logger, m *metrics.Recorder) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Suffix == "" {
		opts.Suffix = "_scan"
	}
	if opts.Source == "" {
		opts.Source = "batch"
	}
	return &Runner{
		scanner:   s,
		opts:      opts,
		logger:    logger,
		metrics:   m,
		recognize: ocr.Recognize,
	}
}

// SetRecognizer replaces the OCR backend.
func (r *Runner) SetRecognizer(fn Recognizer) {
	r.recognize = fn
}

// Workers returns the concurrency limit.
func (r *Runner) Workers() int { return r.opts.Workers }

// Run expands paths and scans every image file found. Per-file failures are
// reported in the outcomes, in input order; the returned error is only set
// when expansion fails or ctx is cancelled.
func (r *Runner) Run(ctx context.Context, paths []string) ([]Outcome, error) {
	files, err := r.Expand(paths)
	if err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, len(files))
	// gctx is cancelled as soon as Wait returns; only ctx reports whether
	// the caller gave up.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)

	for i, file := range files {
		if gctx.Err() != nil {
			break
		}
		i, file := i, file
		g.Go(func() error {
			outcomes[i] = r.Process(gctx, file)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return outcomes, err
	}
	return outcomes, ctx.Err()
}

// Process scans one file and writes its outputs.
func (r *Runner) Process(ctx context.Context, input string) Outcome {
	start := time.Now()
	out := Outcome{ID: uuid.NewString(), Input: input}

	err := r.process(ctx, input, &out)
	out.Duration = time.Since(start)
	out.Kind = scan.Outcome(err)
	if err != nil {
		out.Err = err
		out.Error = err.Error()
		r.logger.Warn("file failed", "input", input, "kind", out.Kind, "error", err)
	} else {
		r.logger.Info("file scanned", "input", input, "output", out.Output,
			"width", out.Width, "height", out.Height, "duration", out.Duration)
	}
	r.metrics.RecordFile(r.opts.Source, out.Kind)
	return out
}

func (r *Runner) process(ctx context.Context, input string, out *Outcome) error {
	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", input, err)
	}

	res, err := r.scanner.ScanBytes(ctx, data)
	if err != nil {
		return err
	}
	out.ID = res.ID
	out.Width, out.Height = res.Width, res.Height
	out.Corners = res.Corners

	target, err := r.writePage(r.OutputPath(input), res.ID, res.Image)
	if err != nil {
		return err
	}
	out.Output = target

	if !r.opts.OCR {
		return nil
	}
	text, err := r.recognize(res.Image, r.opts.Language)
	if err != nil {
		return fmt.Errorf("ocr %s: %w", input, err)
	}
	textFile := strings.TrimSuffix(target, filepath.Ext(target)) + ".txt"
	if err := os.WriteFile(textFile, []byte(text.Text), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", textFile, err)
	}
	out.TextFile = textFile
	return nil
}

// OutputPath returns where the page for input is written:
// <dir>/<stem><suffix>.jpg.
func (r *Runner) OutputPath(input string) string {
	dir := r.opts.OutputDir
	if dir == "" {
		dir = filepath.Dir(input)
	}
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(dir, stem+r.opts.Suffix+".jpg")
}

// writePage creates the output directory and writes data to path. Unless
// overwriting, the name is claimed with O_EXCL and processed-<id>.jpg is used
// when it is already taken, so two inputs sharing a stem never overwrite
// each other.
func (r *Runner) writePage(path, id string, data []byte) (string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if r.opts.Overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if errors.Is(err, os.ErrExist) {
		path = filepath.Join(dir, uniquePrefix+id+".jpg")
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	}
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// IsOutput reports whether name looks like a file this runner writes, so
// hot folders do not rescan their own results.
func (r *Runner) IsOutput(name string) bool {
	base := filepath.Base(name)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return strings.HasSuffix(stem, r.opts.Suffix) || strings.HasPrefix(base, uniquePrefix)
}

// Expand replaces directories in paths with the supported image files they
// contain (not recursive, sorted by name). Files named explicitly are kept
// as given. Existing outputs are skipped.
func (r *Runner) Expand(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read directory %s: %w", p, err)
		}
		var found []string
		for _, e := range entries {
			if e.IsDir() || !imaging.IsSupported(e.Name()) || r.IsOutput(e.Name()) {
				continue
			}
			found = append(found, filepath.Join(p, e.Name()))
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}
