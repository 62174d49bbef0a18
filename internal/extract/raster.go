package extract

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/gen2brain/go-fitz"

	"github.com/paperledger/invoice-intake/internal/document"
)

// Rasterize renders every page of the document to a lossless PNG at the given
// DPI, in page order. Single images pass through fitz as one-page documents,
// which also normalizes exotic encodings before preprocessing.
func Rasterize(doc document.Document, dpi int) ([][]byte, error) {
	fz, err := fitz.NewFromMemory(doc.Data)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer fz.Close()

	pages := make([][]byte, 0, fz.NumPage())
	for i := 0; i < fz.NumPage(); i++ {
		img, err := fz.ImageDPI(i, float64(dpi))
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", i+1, err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode page %d: %w", i+1, err)
		}
		pages = append(pages, buf.Bytes())
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("document has no pages")
	}
	return pages, nil
}
