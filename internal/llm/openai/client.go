package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/paperledger/invoice-intake/internal/common"
	"github.com/paperledger/invoice-intake/internal/llm"
)

// statusError carries a non-2xx response so retry logic can inspect the code.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("openai status %d: %s", e.code, e.body)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// ExtractFields implements llm.FieldExtractor using text-only chat/completions
// constrained by the invoice JSON schema. Transport errors, retryable status
// codes and undecodable response content are retried with exponential backoff
// up to MaxRetries; exhaustion surfaces as a common.ErrRetryable so callers
// can requeue rather than fail the document.
func (c *Client) ExtractFields(ctx context.Context, req llm.ExtractRequest) (llm.ExtractionResult, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(req.SourceText),
		"ocr_confidence", req.OCRConfidence,
	)

	schema := llm.BuildInvoiceJSONSchema()
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": buildSystemPrompt(req)},
			{"role": "user", "content": buildUserPrompt(req) + "\n\nReturn ONLY JSON that matches the provided schema."},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
		},
	}
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.cfg.RetryBase << (attempt - 1)
			c.log.Warn("llm.extract.retry",
				"req_id", rid, "attempt", attempt, "delay", delay, "error", lastErr)
			select {
			case <-ctx.Done():
				return llm.ExtractionResult{}, nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		raw, err := c.post(ctx, endpoint, body)
		if err != nil {
			lastErr = err
			var se *statusError
			if errors.As(err, &se) && !retryableStatus(se.code) {
				c.log.Error("llm.extract.http_error",
					"req_id", rid, "error", err,
					"elapsed_ms", time.Since(start).Milliseconds(),
				)
				return llm.ExtractionResult{}, nil, err
			}
			continue
		}

		content, err := chatContent(raw)
		if err != nil {
			lastErr = err
			continue
		}

		res, err := llm.ParseExtraction(content)
		if err != nil {
			// Not JSON at all; the model may do better on a retry.
			lastErr = err
			continue
		}

		c.log.Info("llm.extract.ok",
			"req_id", rid,
			"vendor", res.VendorName,
			"total", res.TotalAmount,
			"currency", res.Currency,
			"warnings", len(res.Warnings),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return res, content, nil
	}

	c.log.Error("llm.extract.exhausted",
		"req_id", rid, "error", lastErr,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return llm.ExtractionResult{}, nil,
		fmt.Errorf("llm extract after %d attempts: %v: %w", c.cfg.MaxRetries+1, lastErr, common.ErrRetryable)
}

func chatContent(raw []byte) ([]byte, error) {
	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return nil, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return nil, fmt.Errorf("no choices in openai response")
	}
	return []byte(strings.TrimSpace(cc.Choices[0].Message.Content)), nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai http error: %w", err)
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			c.log.Warn("openai response body close error", "error", err)
		}
	}(resp.Body)

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{code: resp.StatusCode, body: buf.String()}
	}
	return buf.Bytes(), nil
}

func buildSystemPrompt(req llm.ExtractRequest) string {
	defaultCurrency := req.DefaultCurrency
	if defaultCurrency == "" {
		defaultCurrency = "USD"
	}
	parts := []string{
		"You are an invoice parser. Return ONLY JSON that matches the JSON Schema provided.",
		"Use ISO-8601 dates (YYYY-MM-DD).",
		"Currency must be a 3-letter ISO 4217 code; default to " + defaultCurrency + " if uncertain.",
		"Copy the vendor name as printed, including non-Latin characters.",
		"Report a confidence between 0 and 1 for each field you extract.",
		"Put anything ambiguous or unreadable into 'warnings' instead of guessing.",
		"Never output null. If a field is not present, omit it.",
	}
	return strings.Join(parts, " ")
}

func buildUserPrompt(req llm.ExtractRequest) string {
	var b strings.Builder
	if req.FilenameHint != "" {
		b.WriteString("Filename: ")
		b.WriteString(req.FilenameHint)
		b.WriteString("\n")
	}
	if req.OCRConfidence > 0 {
		fmt.Fprintf(&b, "OCR confidence: %.2f\n", req.OCRConfidence)
	}
	b.WriteString("\nInvoice text (first ~3k chars):\n")
	b.WriteString(truncateUTF8(req.SourceText, 3000))
	return b.String()
}

// truncateUTF8 cuts s to at most max bytes, backing up so a multi-byte rune
// is never split mid-sequence.
func truncateUTF8(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
