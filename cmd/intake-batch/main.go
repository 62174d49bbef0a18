package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/paperledger/invoice-intake/internal/async"
	"github.com/paperledger/invoice-intake/internal/common"
	"github.com/paperledger/invoice-intake/internal/document"
	"github.com/paperledger/invoice-intake/internal/extract"
	"github.com/paperledger/invoice-intake/internal/ingest"
	"github.com/paperledger/invoice-intake/internal/llm/openai"
	"github.com/paperledger/invoice-intake/internal/ocr"
	"github.com/paperledger/invoice-intake/internal/pipeline"
	"github.com/paperledger/invoice-intake/internal/preprocess"
	"github.com/paperledger/invoice-intake/internal/repository"
	"github.com/paperledger/invoice-intake/internal/vendor"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir       = flag.String("dir", "", "directory to process invoices from (required)")
		tenantStr = flag.String("tenant", "", "tenant UUID (required)")
		inmem     = flag.Bool("inmem", false, "use an in-memory SQLite vendor store")
		extsStr   = flag.String("exts", "", "comma-separated extensions to include (default: pdf,jpg,jpeg,png,tif,tiff)")
		workers   = flag.Int("workers", 0, "concurrent documents (default: NumCPU)")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	tenantID, err := uuid.Parse(*tenantStr)
	if err != nil {
		printError("Error: --tenant must be a valid UUID: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	_ = godotenv.Load()
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	store, cleanup, err := openStore(ctx, cfg, *inmem, logger)
	if err != nil {
		logger.Error("failed to open vendor store", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	proc := buildProcessor(cfg, store, logger)

	var exts []string
	if *extsStr != "" {
		exts = strings.Split(*extsStr, ",")
	}
	paths, stats, err := ingest.ScanDirectory(*dir, exts, true)
	if err != nil {
		logger.Error("failed to scan directory", "dir", *dir, "error", err)
		os.Exit(1)
	}
	logger.Info("scan complete",
		"dir", *dir,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"skipped", stats.Skipped,
	)

	var processed, failed atomic.Uint32
	queue := async.NewQueue(*workers, 0, func(ctx context.Context, job async.Job) error {
		data, err := os.ReadFile(job.Path)
		if err != nil {
			failed.Add(1)
			return fmt.Errorf("read %s: %w", job.Path, err)
		}
		doc := document.FromPath(job.Path, data)
		res, err := proc.ProcessDocument(ctx, tenantID, doc, filepath.Base(job.Path))
		if err != nil {
			failed.Add(1)
			return fmt.Errorf("process %s: %w", job.Path, err)
		}
		processed.Add(1)
		logger.Info("intake.done",
			"path", job.Path,
			"status", res.Status,
			"method", res.Method,
			"pages", res.Pages,
			"vendor", res.Extraction.VendorName,
			"vendor_id", res.Vendor.VendorID,
			"vendor_new", res.Vendor.IsNew,
			"total", res.Extraction.TotalAmount,
			"currency", res.Extraction.Currency,
			"warnings", len(res.Warnings)+len(res.Extraction.Warnings),
		)
		return nil
	}, logger)

	for _, path := range paths {
		if err := queue.Enqueue(ctx, async.Job{TenantID: tenantID.String(), Path: path}); err != nil {
			logger.Error("enqueue failed", "path", path, "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()
	queue.Shutdown(shutdownCtx)

	logger.Info("batch complete",
		"processed", processed.Load(),
		"failed", failed.Load(),
	)
	if failed.Load() > 0 {
		os.Exit(1)
	}
}

func openStore(ctx context.Context, cfg *common.Config, inmem bool, logger *slog.Logger) (vendor.VendorStore, func(), error) {
	if inmem {
		repo, err := repository.OpenSQLite(ctx, "", logger)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { _ = repo.Close() }, nil
	}

	if cfg.Database.DSN == "" {
		return nil, nil, fmt.Errorf("DB_URL is required unless --inmem is set")
	}
	pool, err := repository.Open(ctx, repository.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := repository.HealthCheck(ctx, pool, 5*time.Second, logger); err != nil {
		repository.Close(pool, logger)
		return nil, nil, err
	}
	repo := repository.NewPostgresVendorRepository(pool, logger)
	if err := repo.Migrate(ctx); err != nil {
		repository.Close(pool, logger)
		return nil, nil, err
	}
	return repo, func() { repository.Close(pool, logger) }, nil
}

func buildProcessor(cfg *common.Config, store vendor.VendorStore, logger *slog.Logger) *pipeline.Processor {
	gate := extract.NewGate(cfg.Intake.MinTextLength, logger)
	pre := preprocess.NewPipeline(cfg.Intake.Workers, logger)
	engine := ocr.NewEngine(ocr.Config{
		Tesseract:           cfg.OCR.Tesseract,
		TesseractLang:       cfg.OCR.TesseractLang,
		TessdataDir:         cfg.OCR.TessdataDir,
		EnableTSVConfidence: cfg.OCR.EnableTSVConfidence,
	}, logger)
	ocrStage := pipeline.NewTesseractStage(engine, cfg.Intake.MinTextLength, logger)
	fields := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		MaxRetries:  cfg.LLM.MaxRetries,
	}, logger)
	resolver := vendor.NewResolver(store, logger)
	return pipeline.NewProcessor(gate, pre, ocrStage, fields, resolver, cfg.Intake.RasterDPI, logger)
}
