package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ironsheep/docscan-mcp/internal/batch"
	"github.com/ironsheep/docscan-mcp/internal/geometry"
	"github.com/ironsheep/docscan-mcp/internal/imaging"
	"github.com/ironsheep/docscan-mcp/internal/ocr"
	"github.com/ironsheep/docscan-mcp/internal/server"
	"github.com/ironsheep/docscan-mcp/internal/watch"
)

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <input>",
		Short: "Scan one photo into a rectified JPEG",
		Long: `Scan one photo. The page is written to -o, or to <stem>_scan.jpg next to
the input (or in output.dir). Exits with status 2 when no document outline
could be found, so scripts can fall back to a manual crop.`,
		Args: cobra.ExactArgs(1),
		RunE: runScan,
	}
	cmd.Flags().StringP("output", "o", "", "Output JPEG path")
	cmd.Flags().Bool("ocr", false, "Print the recognized text of the page")
	cmd.Flags().String("lang", "", "Tesseract language (default from config)")
	return cmd
}

func runScan(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	input := args[0]

	output, _ := cmd.Flags().GetString("output")
	withOCR, _ := cmd.Flags().GetBool("ocr")
	lang, _ := cmd.Flags().GetString("lang")
	if lang == "" {
		lang = a.cfg.OCR.Language
	}
	if cmd.Flags().Changed("ocr") {
		a.cfg.OCR.Enabled = withOCR
	}

	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", input, err)
	}
	res, err := a.scanner.ScanBytes(cmd.Context(), data)
	if err != nil {
		return pipelineError(err)
	}

	if output == "" {
		output = a.runner(batch.Options{}).OutputPath(input)
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(output, res.Image, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %dx%d %s\n", output, res.Width, res.Height, formatQuad(res.Corners))

	if a.cfg.OCR.Enabled {
		text, err := ocr.Recognize(res.Image, lang)
		if err != nil {
			return fmt.Errorf("ocr failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), text.Text)
	}
	return nil
}

func newDetectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect <input>",
		Short: "Print the document outline without rectifying",
		Args:  cobra.ExactArgs(1),
		RunE:  runDetect,
	}
	cmd.Flags().String("overlay", "", "Write the photo with the outline drawn on it to this path")
	return cmd
}

type detectOutput struct {
	Input        string        `json:"input"`
	Corners      geometry.Quad `json:"corners"`
	Area         float64       `json:"area"`
	TargetWidth  int           `json:"target_width"`
	TargetHeight int           `json:"target_height"`
	Candidates   int           `json:"candidates"`
	Truncated    bool          `json:"truncated,omitempty"`
	Overlay      string        `json:"overlay,omitempty"`
}

func runDetect(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	input := args[0]
	overlay, _ := cmd.Flags().GetString("overlay")

	img, err := imaging.Open(input)
	if err != nil {
		return err
	}
	d, err := a.scanner.Detect(cmd.Context(), img)
	if err != nil {
		return pipelineError(err)
	}
	ordered, err := d.Ordered()
	if err != nil {
		return pipelineError(err)
	}

	w, h := ordered.TargetSize()
	out := detectOutput{
		Input:        input,
		Corners:      ordered,
		Area:         d.Area,
		TargetWidth:  w,
		TargetHeight: h,
		Candidates:   len(d.Candidates),
		Truncated:    d.Truncated,
	}
	if overlay != "" {
		if err := imaging.SaveOverlay(img, ordered, a.cfg.Overlay.Color, overlay); err != nil {
			return err
		}
		out.Overlay = overlay
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <path>...",
		Short: "Scan many photos concurrently",
		Long: `Scan every image given. Directories are expanded to the image files they
contain; earlier outputs are skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runBatch,
	}
	cmd.Flags().IntP("workers", "w", 0, "Concurrent scans (default from config)")
	cmd.Flags().String("out-dir", "", "Directory for scanned pages (default next to each input)")
	cmd.Flags().Bool("ocr", false, "Also write recognized text to a .txt file per page")
	return cmd
}

func runBatch(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	if err := applyBatchFlags(cmd, a); err != nil {
		return err
	}

	runner := a.runner(batch.Options{Source: "batch"})
	outcomes, err := runner.Run(cmd.Context(), args)
	if err != nil && outcomes == nil {
		return err
	}

	failed := 0
	for _, o := range outcomes {
		if o.OK() {
			fmt.Fprintf(cmd.OutOrStdout(), "ok\t%s\t%s\n", o.Input, o.Output)
			continue
		}
		failed++
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", o.Kind, o.Input, o.Error)
	}
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(outcomes))
	}
	return nil
}

func applyBatchFlags(cmd *cobra.Command, a *app) error {
	if cmd.Flags().Changed("workers") {
		workers, _ := cmd.Flags().GetInt("workers")
		if workers < 1 {
			return fmt.Errorf("workers must be at least 1, got %d", workers)
		}
		a.cfg.Workers = workers
	}
	if cmd.Flags().Changed("out-dir") {
		a.cfg.Output.Dir, _ = cmd.Flags().GetString("out-dir")
	}
	if cmd.Flags().Changed("ocr") {
		a.cfg.OCR.Enabled, _ = cmd.Flags().GetBool("ocr")
	}
	return nil
}

// runner builds a batch.Runner from the loaded configuration. Fields set in
// opts win.
func (a *app) runner(opts batch.Options) *batch.Runner {
	if opts.Workers == 0 {
		opts.Workers = a.cfg.Workers
	}
	if opts.OutputDir == "" {
		opts.OutputDir = a.cfg.Output.Dir
	}
	if opts.Suffix == "" {
		opts.Suffix = a.cfg.Output.Suffix
	}
	opts.Overwrite = opts.Overwrite || a.cfg.Output.Overwrite
	opts.OCR = opts.OCR || a.cfg.OCR.Enabled
	if opts.Language == "" {
		opts.Language = a.cfg.OCR.Language
	}
	return batch.NewRunner(a.scanner, opts, a.logger, a.metrics)
}

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Scan photos as they appear in a folder",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runWatch,
	}
	cmd.Flags().IntP("workers", "w", 0, "Concurrent scans (default from config)")
	cmd.Flags().String("out-dir", "", "Directory for scanned pages (default the watched folder)")
	cmd.Flags().Bool("ocr", false, "Also write recognized text to a .txt file per page")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	if err := applyBatchFlags(cmd, a); err != nil {
		return err
	}

	dir := a.cfg.Watch.Dir
	if len(args) == 1 {
		dir = args[0]
	}
	if dir == "" {
		return fmt.Errorf("no folder to watch: pass one or set watch.dir")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.serveMetrics(ctx, metricsAddr(cmd, a))

	out := cmd.OutOrStdout()
	w, err := watch.New(dir, a.cfg.Watch.Settle, a.runner(batch.Options{Source: "watch"}), a.logger,
		watch.WithCallback(func(o batch.Outcome) {
			if o.OK() {
				fmt.Fprintf(out, "ok\t%s\t%s\n", o.Input, o.Output)
			} else {
				fmt.Fprintf(out, "%s\t%s\t%s\n", o.Kind, o.Input, o.Error)
			}
		}))
	if err != nil {
		return err
	}
	defer w.Stop()

	a.logger.Info("watching", "dir", dir, "settle", a.cfg.Watch.Settle)
	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	a.logger.Info("watcher stopped")
	return nil
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdin/stdout",
		Long: `Run the MCP server. It speaks JSON-RPC 2.0 over stdin/stdout and is
normally started by an MCP client. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.serveMetrics(ctx, metricsAddr(cmd, a))

	srv := server.New(
		server.WithScanner(a.scanner),
		server.WithLogger(a.logger),
		server.WithVersion(Version),
		server.WithOverlayColor(a.cfg.Overlay.Color),
		server.WithOCRLanguage(a.cfg.OCR.Language),
		server.WithIO(cmd.InOrStdin(), cmd.OutOrStdout()),
	)
	a.logger.Debug("MCP server ready")
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func metricsAddr(cmd *cobra.Command, a *app) string {
	if cmd.Flags().Changed("metrics-addr") {
		addr, _ := cmd.Flags().GetString("metrics-addr")
		return addr
	}
	return a.cfg.Metrics.Addr
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprint(cmd.OutOrStdout(), versionText())
			fmt.Fprint(cmd.OutOrStdout(), ocrText(ocr.GetInfo()))
		},
	}
}

func formatQuad(q geometry.Quad) string {
	parts := make([]string, len(q))
	for i, p := range q {
		parts[i] = p.String()
	}
	return strings.Join(parts, " ")
}
