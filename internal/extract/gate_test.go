package extract

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/paperledger/invoice-intake/internal/document"
)

// pdfWithText hand-writes a one-page PDF whose text layer holds body, with a
// correct xref table so any conforming parser accepts it.
func pdfWithText(t *testing.T, body string) []byte {
	t.Helper()

	esc := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`).Replace(body)
	content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", esc)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(objects)+1)
	b.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(objects)+1, xref)
	return b.Bytes()
}

func TestTryExtractTextLayer(t *testing.T) {
	g := NewGate(0, nil)
	body := "Acme Corp invoice number INV-42 dated 2024-03-15, total due 117.00 ILS"

	doc := document.New(pdfWithText(t, body), "application/pdf")
	text, ok := g.TryExtractText(doc)
	if !ok {
		t.Fatal("ok = false for a PDF with a usable text layer")
	}
	if !strings.Contains(text, "INV-42") {
		t.Errorf("text = %q, want the embedded body", text)
	}
	if !g.HasSelectableText(doc) {
		t.Error("HasSelectableText = false for a PDF with a text layer")
	}
}

func TestTryExtractTextThresholdBoundary(t *testing.T) {
	g := NewGate(0, nil)

	tests := []struct {
		name string
		body string
		want bool
	}{
		{"exactly at threshold rejected", strings.Repeat("a", DefaultMinTextLength), false},
		{"one past threshold accepted", strings.Repeat("a", DefaultMinTextLength+1), true},
		{"far below threshold rejected", "stub", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := document.New(pdfWithText(t, tt.body), "application/pdf")
			_, ok := g.TryExtractText(doc)
			if ok != tt.want {
				t.Errorf("ok = %v for %d-char body, want %v", ok, len(tt.body), tt.want)
			}
		})
	}
}

func TestUsableTextCountsRunes(t *testing.T) {
	// 26 Hebrew letters are 52 bytes; a byte count would wrongly accept them.
	hebrew := strings.Repeat("א", 26)

	tests := []struct {
		name string
		text string
		min  int
		want bool
	}{
		{"hebrew below threshold", hebrew, 50, false},
		{"hebrew above threshold", strings.Repeat("א", 51), 50, true},
		{"ascii at threshold", strings.Repeat("a", 50), 50, false},
		{"ascii past threshold", strings.Repeat("a", 51), 50, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := usableText(tt.text, tt.min); got != tt.want {
				t.Errorf("usableText(%d runes, min %d) = %v, want %v",
					len([]rune(tt.text)), tt.min, got, tt.want)
			}
		})
	}
}

func TestTryExtractTextUnparseable(t *testing.T) {
	g := NewGate(0, nil)

	tests := []struct {
		name string
		data []byte
	}{
		{"garbage bytes", []byte("definitely not a pdf")},
		{"empty document", nil},
		{"truncated pdf header", []byte("%PDF-1.7")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := document.New(tt.data, "application/pdf")
			text, ok := g.TryExtractText(doc)
			if ok {
				t.Errorf("ok = true for unparseable input, text %q", text)
			}
			if text != "" {
				t.Errorf("text = %q, want empty on rejection", text)
			}
			if g.HasSelectableText(doc) {
				t.Error("HasSelectableText = true for unparseable input")
			}
		})
	}
}

func TestRasterizeTextPDF(t *testing.T) {
	doc := document.New(pdfWithText(t, "raster me"), "application/pdf")
	pages, err := Rasterize(doc, 72)
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("got %d pages, want 1", len(pages))
	}
	if len(pages[0]) == 0 {
		t.Error("rasterized page is empty")
	}
}

func TestRasterizeUnparseable(t *testing.T) {
	doc := document.New([]byte("not a pdf"), "application/pdf")
	if _, err := Rasterize(doc, 300); err == nil {
		t.Error("expected an error for unparseable input")
	}
}
