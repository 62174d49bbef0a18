package llm

import "context"

// LineItem is one row of an invoice's item table.
type LineItem struct {
	Description string   `json:"description"`
	Quantity    *float64 `json:"quantity,omitempty"`
	UnitPrice   *float64 `json:"unitPrice,omitempty"`
	Amount      *float64 `json:"amount,omitempty"`
}

// ExtractionResult is the normalized shape we want from the model. Required
// fields are always populated (zero-valued when the response violated the
// schema, with a matching entry in Warnings); optional fields stay nil/empty
// when absent.
type ExtractionResult struct {
	VendorName     string     `json:"vendorName"`
	InvoiceDate    string     `json:"invoiceDate,omitempty"` // YYYY-MM-DD
	TotalAmount    float64    `json:"totalAmount"`
	Currency       string     `json:"currency"` // ISO 4217
	InvoiceNumber  string     `json:"invoiceNumber,omitempty"`
	VATAmount      *float64   `json:"vatAmount,omitempty"`
	SubtotalAmount *float64   `json:"subtotalAmount,omitempty"`
	LineItems      []LineItem `json:"lineItems,omitempty"`

	// Confidence maps field name -> model confidence in [0,1].
	Confidence map[string]float64 `json:"confidence"`
	// Warnings is the surfaced channel for "extracted but uncertain";
	// schema violations land here instead of failing the request.
	Warnings []string `json:"warnings"`
}

// ExtractRequest carries the source text plus hints for the model.
type ExtractRequest struct {
	SourceText      string
	FilenameHint    string
	DefaultCurrency string

	// OCRConfidence is the blended confidence from the OCR stage, 0 when the
	// text came from a native text layer.
	OCRConfidence float32
}

// FieldExtractor is the interface the intake pipeline depends on.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, req ExtractRequest) (ExtractionResult, []byte /*rawJSON*/, error)
}
