package extract

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/gen2brain/go-fitz"

	"github.com/paperledger/invoice-intake/internal/document"
)

// DefaultMinTextLength is the trimmed-character threshold below which a
// native text layer is treated as unusable and the document is routed to OCR.
const DefaultMinTextLength = 50

// Gate decides whether a document already carries machine-readable text or
// must be rasterized and OCR'd. Parser failures are never fatal: OCR is
// always a valid fallback path.
type Gate struct {
	minTextLength int
	logger        *slog.Logger
}

func NewGate(minTextLength int, logger *slog.Logger) *Gate {
	if minTextLength <= 0 {
		minTextLength = DefaultMinTextLength
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{minTextLength: minTextLength, logger: logger}
}

// TryExtractText attempts direct extraction from the document's native text
// layer. ok is false when the document has no usable text (too short, empty,
// or unparseable) and the caller should fall back to OCR.
func (g *Gate) TryExtractText(doc document.Document) (text string, ok bool) {
	fz, err := fitz.NewFromMemory(doc.Data)
	if err != nil {
		g.logger.Debug("gate.parse_failed", "error", err)
		return "", false
	}
	defer fz.Close()

	var b strings.Builder
	for i := 0; i < fz.NumPage(); i++ {
		pageText, err := fz.Text(i)
		if err != nil {
			g.logger.Debug("gate.page_text_failed", "page", i+1, "error", err)
			continue
		}
		if pageText != "" {
			b.WriteString(pageText)
			b.WriteString("\n")
		}
	}

	text = strings.TrimSpace(b.String())
	if !usableText(text, g.minTextLength) {
		g.logger.Debug("gate.text_too_short", "chars", utf8.RuneCountInString(text), "min", g.minTextLength)
		return "", false
	}
	return text, true
}

// usableText reports whether extracted text clears the acceptance threshold.
// Counted in runes, not bytes, so non-Latin scripts are not over-counted.
func usableText(text string, min int) bool {
	return utf8.RuneCountInString(text) > min
}

// HasSelectableText reports whether the document carries usable native text.
func (g *Gate) HasSelectableText(doc document.Document) bool {
	_, ok := g.TryExtractText(doc)
	return ok
}
