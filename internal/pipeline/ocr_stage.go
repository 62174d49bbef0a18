package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/paperledger/invoice-intake/internal/ocr"
	"github.com/paperledger/invoice-intake/internal/preprocess"
)

// OCRStage recognizes text on preprocessed pages. Split from the Processor so
// tests can substitute a stub without a tesseract install.
type OCRStage interface {
	Run(ctx context.Context, pages []preprocess.Result) (text string, pageCount int, confidence float32, warnings []string, err error)
}

// Recognizer OCRs a single page image. *ocr.Engine satisfies it.
type Recognizer interface {
	Recognize(ctx context.Context, page []byte) (ocr.PageResult, error)
}

// TesseractStage runs the OCR engine over each page's enhanced variants:
// the standard binarization first, retrying with the line-suppressed variant
// when the standard read comes back short (ruled invoices confuse cell
// segmentation), keeping whichever text is longer.
type TesseractStage struct {
	Engine Recognizer
	Logger *slog.Logger

	// MinChars is the per-page length under which the noLines variant is
	// attempted; mirrors the text gate's acceptance threshold.
	MinChars int
}

func NewTesseractStage(engine Recognizer, minChars int, logger *slog.Logger) *TesseractStage {
	if logger == nil {
		logger = slog.Default()
	}
	if minChars <= 0 {
		minChars = 50
	}
	return &TesseractStage{Engine: engine, Logger: logger, MinChars: minChars}
}

func (s *TesseractStage) Run(ctx context.Context, pages []preprocess.Result) (string, int, float32, []string, error) {
	var (
		b        strings.Builder
		warnings []string
		confSum  float32
		confN    int
	)

	for i, page := range pages {
		text, conf, warns, err := s.recognizePage(ctx, page)
		warnings = append(warnings, warns...)
		if err != nil {
			s.Logger.Warn("pipeline.ocr.page_failed", "page", i+1, "error", err)
			warnings = append(warnings, err.Error())
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n") // keep a clear page break marker
		}
		b.WriteString(text)
		if conf > 0 {
			confSum += conf
			confN++
		}
	}

	var conf float32
	if confN > 0 {
		conf = confSum / float32(confN)
	}
	return b.String(), len(pages), conf, warnings, nil
}

func (s *TesseractStage) recognizePage(ctx context.Context, page preprocess.Result) (string, float32, []string, error) {
	std, err := s.Engine.Recognize(ctx, page.Standard)
	if err != nil {
		// standard variant unreadable; the noLines one may still decode
		nl, err2 := s.Engine.Recognize(ctx, page.NoLines)
		if err2 != nil {
			return "", 0, std.Warnings, err
		}
		return nl.Text, nl.Confidence, nl.Warnings, nil
	}

	if len(strings.TrimSpace(std.Text)) >= s.MinChars {
		return std.Text, std.Confidence, std.Warnings, nil
	}

	nl, err := s.Engine.Recognize(ctx, page.NoLines)
	if err != nil || len(strings.TrimSpace(nl.Text)) <= len(strings.TrimSpace(std.Text)) {
		return std.Text, std.Confidence, std.Warnings, nil
	}
	return nl.Text, nl.Confidence, append(std.Warnings, nl.Warnings...), nil
}
