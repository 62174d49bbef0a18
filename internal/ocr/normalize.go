package ocr

import (
	"regexp"
	"strings"
)

var (
	// box-drawing and separator noise tesseract emits around ruled tables
	reBoxNoise   = regexp.MustCompile(`[|_]{2,}|[-=]{4,}`)
	reBlankLines = regexp.MustCompile(`\n{3,}`)
)

// NormalizeText cleans raw tesseract output: CRLF to LF, obvious line noise
// removed, trailing space per line trimmed, runs of blank lines collapsed.
func NormalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = reBoxNoise.ReplaceAllString(s, "")
	lines := strings.Split(s, "\n")
	for i, ln := range lines {
		lines[i] = strings.TrimRight(ln, " \t")
	}
	s = strings.Join(lines, "\n")
	s = reBlankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
