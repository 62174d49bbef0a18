package preprocess

import (
	"bytes"
	"fmt"
	"image"
	"log/slog"
	"runtime"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"
)

const (
	// TargetMinDimension is the minimum size of the larger axis after
	// upscaling: the long edge of an A4 page at roughly 350 DPI. Small
	// invoice photos below this yield unreadable glyphs under OCR.
	TargetMinDimension = 4000

	sharpenSigma   = 1.0
	contrastSlope  = 1.2
	contrastOffset = -18

	standardThreshold = 140 // binarization level for the standard variant
	noLinesThreshold  = 168 // higher level erases thin blurred grid lines

	lineBlurRadius      = 1.0
	denoiseBlurRadius   = 0.6
	denoiseSharpenSigma = 0.8
)

// Metadata describes what the pipeline did to a page.
type Metadata struct {
	OriginalWidth   int
	OriginalHeight  int
	ProcessedWidth  int
	ProcessedHeight int
	Rotated         bool
	Deskewed        bool // always false; rotation-angle detection is unimplemented
}

// Result carries the two enhanced variants of a page. On any internal
// failure both hold the original input bytes so callers can still attempt
// OCR; they are therefore non-empty whenever the input was. An empty input
// page yields empty variants, the one case with nothing to fall back to.
type Result struct {
	Standard []byte // binarized, general-purpose
	NoLines  []byte // same page with thin grid/table lines suppressed
	Meta     Metadata
}

// Pipeline enhances raw page images for OCR. It is a pure, stateless
// transform; pages may be processed fully in parallel.
type Pipeline struct {
	logger  *slog.Logger
	workers int
}

func NewPipeline(workers int, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pipeline{logger: logger, workers: workers}
}

// Preprocess runs the enhancement chain on one page. It never fails: if any
// stage errors, both variants fall back to the unmodified input and the
// metadata is zeroed.
func (p *Pipeline) Preprocess(page []byte) Result {
	res, err := p.run(page)
	if err != nil {
		p.logger.Warn("preprocess.fallback", "error", err, "input_bytes", len(page))
		return Result{Standard: page, NoLines: page}
	}
	return res
}

// PreprocessAll processes pages independently and returns results in page
// order. Parallelism is bounded by the pipeline's worker count.
func (p *Pipeline) PreprocessAll(pages [][]byte) []Result {
	results := make([]Result, len(pages))
	var g errgroup.Group
	g.SetLimit(p.workers)
	for i, page := range pages {
		g.Go(func() error {
			results[i] = p.Preprocess(page)
			return nil
		})
	}
	_ = g.Wait() // Preprocess never errors
	return results
}

// NeedsPreprocessing reports whether a page is below the OCR target
// resolution. The pipeline deliberately does not consult it: resizing and
// contrast handling interact, so current policy is to always preprocess.
func NeedsPreprocessing(page []byte) bool {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(page))
	if err != nil {
		return true
	}
	larger := cfg.Width
	if cfg.Height > larger {
		larger = cfg.Height
	}
	return larger < TargetMinDimension
}

func (p *Pipeline) run(page []byte) (Result, error) {
	cfg, _, cfgErr := image.DecodeConfig(bytes.NewReader(page))

	// Stage 1: decode with EXIF auto-orientation (phone-camera rotation).
	src, err := imaging.Decode(bytes.NewReader(page), imaging.AutoOrientation(true))
	if err != nil {
		return Result{}, fmt.Errorf("decode: %w", err)
	}

	bounds := src.Bounds()
	meta := Metadata{
		OriginalWidth:  bounds.Dx(),
		OriginalHeight: bounds.Dy(),
	}
	if cfgErr == nil && (cfg.Width != bounds.Dx() || cfg.Height != bounds.Dy()) {
		meta.Rotated = true
	}

	// Stage 2: grayscale drops color noise irrelevant to OCR.
	img := imaging.Grayscale(src)

	// Stage 3: uniform upscale when the larger axis is below target.
	w, h := bounds.Dx(), bounds.Dy()
	if larger := maxInt(w, h); larger < TargetMinDimension {
		if w >= h {
			img = imaging.Resize(img, TargetMinDimension, 0, imaging.Lanczos)
		} else {
			img = imaging.Resize(img, 0, TargetMinDimension, imaging.Lanczos)
		}
	}
	meta.ProcessedWidth = img.Bounds().Dx()
	meta.ProcessedHeight = img.Bounds().Dy()

	// Stage 4: histogram stretch.
	img = stretchHistogram(img)

	// Stage 5: mild sharpen counteracts upscale blur.
	img = imaging.Sharpen(img, sharpenSigma)

	// Stage 6: linear contrast boost compensates for the softening above.
	boosted := linear(img, contrastSlope, contrastOffset)

	// Stage 7: fixed-threshold binarization is the standard output.
	standard, err := encodePNG(threshold(boosted, standardThreshold))
	if err != nil {
		return Result{}, fmt.Errorf("encode standard: %w", err)
	}

	noLines, err := p.deriveNoLines(boosted)
	if err != nil {
		// Fall back to the plain binarization rather than failing the call.
		p.logger.Warn("preprocess.nolines_fallback", "error", err)
		noLines = standard
	}

	return Result{Standard: standard, NoLines: noLines, Meta: meta}, nil
}

// deriveNoLines builds the line-suppressed variant from the contrast-boosted
// (pre-binarization) image: binarize, blur so broken thin lines merge, then
// re-binarize at a higher level which erases the merged lines but keeps the
// thicker glyph strokes, and finish with a light denoise pass.
func (p *Pipeline) deriveNoLines(boosted *image.NRGBA) ([]byte, error) {
	img := threshold(boosted, standardThreshold)
	img = imaging.Blur(img, lineBlurRadius)
	img = threshold(img, noLinesThreshold)
	img = imaging.Blur(img, denoiseBlurRadius)
	img = imaging.Sharpen(img, denoiseSharpenSigma)
	return encodePNG(img)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
