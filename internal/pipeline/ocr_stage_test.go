package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/paperledger/invoice-intake/internal/ocr"
	"github.com/paperledger/invoice-intake/internal/preprocess"
)

// stubRecognizer maps page bytes to canned results.
type stubRecognizer struct {
	results map[string]ocr.PageResult
	errs    map[string]error
	calls   []string
}

func (s *stubRecognizer) Recognize(_ context.Context, page []byte) (ocr.PageResult, error) {
	key := string(page)
	s.calls = append(s.calls, key)
	if err, ok := s.errs[key]; ok {
		return ocr.PageResult{}, err
	}
	return s.results[key], nil
}

func longText(prefix string) string {
	return prefix + ": " + strings.Repeat("invoice line ", 10)
}

func page(std, nl string) preprocess.Result {
	return preprocess.Result{Standard: []byte(std), NoLines: []byte(nl)}
}

func TestStageStandardVariantAccepted(t *testing.T) {
	rec := &stubRecognizer{results: map[string]ocr.PageResult{
		"std": {Text: longText("standard"), Confidence: 0.8},
	}}
	s := NewTesseractStage(rec, 50, nil)

	text, pages, conf, _, err := s.Run(context.Background(), []preprocess.Result{page("std", "nl")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.HasPrefix(text, "standard:") {
		t.Errorf("text = %q, want the standard variant's output", text)
	}
	if pages != 1 {
		t.Errorf("pages = %d, want 1", pages)
	}
	if conf != 0.8 {
		t.Errorf("confidence = %v, want 0.8", conf)
	}
	if len(rec.calls) != 1 {
		t.Errorf("recognizer called %d times, want 1 (no-lines variant skipped)", len(rec.calls))
	}
}

func TestStageShortStandardFallsBackToNoLines(t *testing.T) {
	rec := &stubRecognizer{results: map[string]ocr.PageResult{
		"std": {Text: "a b", Confidence: 0.3},
		"nl":  {Text: longText("nolines"), Confidence: 0.7},
	}}
	s := NewTesseractStage(rec, 50, nil)

	text, _, conf, _, err := s.Run(context.Background(), []preprocess.Result{page("std", "nl")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.HasPrefix(text, "nolines:") {
		t.Errorf("text = %q, want the longer no-lines output", text)
	}
	if conf != 0.7 {
		t.Errorf("confidence = %v, want the no-lines confidence", conf)
	}
}

func TestStageKeepsStandardWhenNoLinesShorter(t *testing.T) {
	rec := &stubRecognizer{results: map[string]ocr.PageResult{
		"std": {Text: "short standard read", Confidence: 0.4},
		"nl":  {Text: "tiny", Confidence: 0.9},
	}}
	s := NewTesseractStage(rec, 50, nil)

	text, _, conf, _, err := s.Run(context.Background(), []preprocess.Result{page("std", "nl")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if text != "short standard read" {
		t.Errorf("text = %q, want the standard output kept", text)
	}
	if conf != 0.4 {
		t.Errorf("confidence = %v, want 0.4", conf)
	}
}

func TestStageStandardFailureUsesNoLines(t *testing.T) {
	rec := &stubRecognizer{
		results: map[string]ocr.PageResult{
			"nl": {Text: longText("rescued"), Confidence: 0.6},
		},
		errs: map[string]error{"std": errors.New("decode failed")},
	}
	s := NewTesseractStage(rec, 50, nil)

	text, _, _, _, err := s.Run(context.Background(), []preprocess.Result{page("std", "nl")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.HasPrefix(text, "rescued:") {
		t.Errorf("text = %q, want the no-lines rescue output", text)
	}
}

func TestStageFailedPageDegradesToWarning(t *testing.T) {
	boom := errors.New("tesseract crashed")
	rec := &stubRecognizer{
		results: map[string]ocr.PageResult{
			"std1": {Text: longText("page one"), Confidence: 0.8},
		},
		errs: map[string]error{"std2": boom, "nl2": boom},
	}
	s := NewTesseractStage(rec, 50, nil)

	text, pages, conf, warnings, err := s.Run(context.Background(), []preprocess.Result{
		page("std1", "nl1"),
		page("std2", "nl2"),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if pages != 2 {
		t.Errorf("pages = %d, want 2", pages)
	}
	if !strings.HasPrefix(text, "page one:") {
		t.Errorf("text = %q, want the surviving page's output", text)
	}
	if len(warnings) == 0 {
		t.Error("expected a warning for the failed page")
	}
	if conf != 0.8 {
		t.Errorf("confidence = %v, want the surviving page's 0.8", conf)
	}
}

func TestStageJoinsPagesWithFormFeed(t *testing.T) {
	rec := &stubRecognizer{results: map[string]ocr.PageResult{
		"std1": {Text: longText("page one"), Confidence: 0.6},
		"std2": {Text: longText("page two"), Confidence: 0.8},
	}}
	s := NewTesseractStage(rec, 50, nil)

	text, _, conf, _, err := s.Run(context.Background(), []preprocess.Result{
		page("std1", "nl1"),
		page("std2", "nl2"),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(text, "\n\f\n") {
		t.Error("expected a form-feed page break between pages")
	}
	if conf < 0.69 || conf > 0.71 {
		t.Errorf("confidence = %v, want mean of 0.6 and 0.8", conf)
	}
}
