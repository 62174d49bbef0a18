package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/paperledger/invoice-intake/constants"
	"github.com/paperledger/invoice-intake/internal/document"
	"github.com/paperledger/invoice-intake/internal/entity"
	"github.com/paperledger/invoice-intake/internal/extract"
	"github.com/paperledger/invoice-intake/internal/llm"
	"github.com/paperledger/invoice-intake/internal/preprocess"
	"github.com/paperledger/invoice-intake/internal/vendor"
)

// Method names for how text was obtained.
const (
	MethodTextLayer = "text-layer"
	MethodOCR       = "ocr"
)

// IntakeResult is the end-to-end outcome for one document.
type IntakeResult struct {
	Status        constants.IntakeStatus
	Method        string
	Pages         int
	OCRConfidence float32
	Extraction    llm.ExtractionResult
	Vendor        entity.MatchResult
	Warnings      []string
}

// Processor coordinates the intake pipeline: text gate, then either the
// native text layer or rasterize -> preprocess -> OCR, then field extraction
// and vendor resolution.
type Processor struct {
	Logger  *slog.Logger
	Gate    *extract.Gate
	Pre     *preprocess.Pipeline
	OCR     OCRStage
	Fields  llm.FieldExtractor
	Vendors *vendor.Resolver

	RasterDPI int
}

func NewProcessor(gate *extract.Gate, pre *preprocess.Pipeline, ocrStage OCRStage, fields llm.FieldExtractor, vendors *vendor.Resolver, rasterDPI int, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if rasterDPI <= 0 {
		rasterDPI = 300
	}
	return &Processor{
		Logger:    logger,
		Gate:      gate,
		Pre:       pre,
		OCR:       ocrStage,
		Fields:    fields,
		Vendors:   vendors,
		RasterDPI: rasterDPI,
	}
}

// ProcessDocument runs the full pipeline for one document. Errors are
// returned only for conditions the caller should retry or surface
// (vendor-store I/O, exhausted LLM retries); data-quality problems degrade
// into the result's Warnings instead.
func (p *Processor) ProcessDocument(ctx context.Context, tenantID uuid.UUID, doc document.Document, filenameHint string) (IntakeResult, error) {
	res := IntakeResult{Status: constants.IntakeStatusRunning}

	text, ok := p.Gate.TryExtractText(doc)
	if ok {
		res.Method = MethodTextLayer
	} else {
		ocrText, pages, conf, warns, err := p.runOCR(ctx, doc)
		if err != nil {
			res.Status = constants.IntakeStatusFailed
			return res, err
		}
		text = ocrText
		res.Method = MethodOCR
		res.Pages = pages
		res.OCRConfidence = conf
		res.Warnings = append(res.Warnings, warns...)
	}
	res.Status = constants.IntakeStatusTextOK
	p.Logger.Info("pipeline.text.ok",
		"tenant_id", tenantID,
		"method", res.Method,
		"pages", res.Pages,
		"chars", len(text),
		"ocr_confidence", res.OCRConfidence,
	)

	fields, _, err := p.Fields.ExtractFields(ctx, llm.ExtractRequest{
		SourceText:    text,
		FilenameHint:  filenameHint,
		OCRConfidence: res.OCRConfidence,
	})
	if err != nil {
		res.Status = constants.IntakeStatusFailed
		return res, fmt.Errorf("extract fields: %w", err)
	}
	res.Extraction = fields

	if fields.VendorName == "" {
		res.Warnings = append(res.Warnings, "vendor name not extracted; vendor left unresolved")
	} else {
		match, err := p.Vendors.Match(ctx, tenantID, fields.VendorName)
		if err != nil {
			res.Status = constants.IntakeStatusFailed
			return res, fmt.Errorf("resolve vendor: %w", err)
		}
		res.Vendor = match
	}

	res.Status = constants.IntakeStatusParsedOK
	p.Logger.Info("pipeline.parse.ok",
		"tenant_id", tenantID,
		"vendor", fields.VendorName,
		"vendor_new", res.Vendor.IsNew,
		"warnings", len(res.Warnings)+len(fields.Warnings),
	)
	return res, nil
}

// runOCR rasterizes the document, preprocesses each page and OCRs the
// enhanced variants. A document that cannot be rasterized but is itself an
// image still goes through preprocessing, which falls back to the original
// bytes on decode failure.
func (p *Processor) runOCR(ctx context.Context, doc document.Document) (string, int, float32, []string, error) {
	pages, err := extract.Rasterize(doc, p.RasterDPI)
	if err != nil {
		if doc.IsPDF() {
			return "", 0, 0, nil, fmt.Errorf("rasterize: %w", err)
		}
		p.Logger.Warn("pipeline.raster_fallback", "error", err)
		pages = [][]byte{doc.Data}
	}

	enhanced := p.Pre.PreprocessAll(pages)
	return p.OCR.Run(ctx, enhanced)
}
