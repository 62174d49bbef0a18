package llm

import (
	"strings"
	"testing"
)

const validResponse = `{
	"vendorName": "Acme Corp",
	"invoiceDate": "2024-03-15",
	"totalAmount": 117.00,
	"currency": "ILS",
	"invoiceNumber": "INV-2024-0042",
	"vatAmount": 17.00,
	"subtotalAmount": 100.00,
	"lineItems": [
		{"description": "Widget", "quantity": 2, "unitPrice": 50, "amount": 100}
	],
	"confidence": {
		"vendorName": 0.95,
		"invoiceDate": 0.9,
		"totalAmount": 0.85,
		"currency": 0.99
	},
	"warnings": []
}`

func hasWarning(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}

func TestParseExtractionValid(t *testing.T) {
	res, err := ParseExtraction([]byte(validResponse))
	if err != nil {
		t.Fatalf("ParseExtraction: %v", err)
	}

	if res.VendorName != "Acme Corp" {
		t.Errorf("vendorName = %q, want %q", res.VendorName, "Acme Corp")
	}
	if res.InvoiceDate != "2024-03-15" {
		t.Errorf("invoiceDate = %q, want %q", res.InvoiceDate, "2024-03-15")
	}
	if res.TotalAmount != 117.00 {
		t.Errorf("totalAmount = %v, want 117.00", res.TotalAmount)
	}
	if res.Currency != "ILS" {
		t.Errorf("currency = %q, want ILS", res.Currency)
	}
	if res.VATAmount == nil || *res.VATAmount != 17.00 {
		t.Errorf("vatAmount = %v, want 17.00", res.VATAmount)
	}
	if len(res.LineItems) != 1 {
		t.Fatalf("got %d line items, want 1", len(res.LineItems))
	}
	li := res.LineItems[0]
	if li.Description != "Widget" || li.Quantity == nil || *li.Quantity != 2 {
		t.Errorf("line item = %+v, want Widget quantity 2", li)
	}
	if res.Confidence["vendorName"] != 0.95 {
		t.Errorf("confidence.vendorName = %v, want 0.95", res.Confidence["vendorName"])
	}
	if len(res.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", res.Warnings)
	}
}

func TestParseExtractionUndecodable(t *testing.T) {
	for _, raw := range []string{"", "not json", `{"vendorName": `} {
		if _, err := ParseExtraction([]byte(raw)); err == nil {
			t.Errorf("ParseExtraction(%q) succeeded, want decode error", raw)
		}
	}
}

func TestParseExtractionMissingFields(t *testing.T) {
	res, err := ParseExtraction([]byte(`{"vendorName": "Acme Corp", "totalAmount": 50}`))
	if err != nil {
		t.Fatalf("ParseExtraction: %v", err)
	}

	if res.VendorName != "Acme Corp" {
		t.Errorf("vendorName = %q, want surviving value", res.VendorName)
	}
	if res.TotalAmount != 50 {
		t.Errorf("totalAmount = %v, want 50", res.TotalAmount)
	}
	if res.Currency != "" {
		t.Errorf("currency = %q, want empty", res.Currency)
	}
	if !hasWarning(res.Warnings, "currency") {
		t.Errorf("expected a currency warning, got %v", res.Warnings)
	}
	if !hasWarning(res.Warnings, "confidence") {
		t.Errorf("expected a confidence warning, got %v", res.Warnings)
	}
	if !hasWarning(res.Warnings, "schema:") {
		t.Errorf("expected schema violation warnings, got %v", res.Warnings)
	}
}

func TestParseExtractionFieldCoercion(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		check       func(t *testing.T, res ExtractionResult)
		wantWarning string
	}{
		{
			name: "currency uppercased",
			raw:  `{"vendorName": "a", "totalAmount": 1, "currency": "ils", "confidence": {}, "warnings": []}`,
			check: func(t *testing.T, res ExtractionResult) {
				if res.Currency != "ILS" {
					t.Errorf("currency = %q, want ILS", res.Currency)
				}
			},
		},
		{
			name:        "currency wrong shape dropped",
			raw:         `{"vendorName": "a", "totalAmount": 1, "currency": "shekels", "confidence": {}, "warnings": []}`,
			wantWarning: "ISO 4217",
			check: func(t *testing.T, res ExtractionResult) {
				if res.Currency != "" {
					t.Errorf("currency = %q, want empty", res.Currency)
				}
			},
		},
		{
			name:        "bad date dropped",
			raw:         `{"vendorName": "a", "totalAmount": 1, "currency": "USD", "invoiceDate": "15/03/2024", "confidence": {}, "warnings": []}`,
			wantWarning: "YYYY-MM-DD",
			check: func(t *testing.T, res ExtractionResult) {
				if res.InvoiceDate != "" {
					t.Errorf("invoiceDate = %q, want empty", res.InvoiceDate)
				}
			},
		},
		{
			name:        "totalAmount as string dropped",
			raw:         `{"vendorName": "a", "totalAmount": "117", "currency": "USD", "confidence": {}, "warnings": []}`,
			wantWarning: "totalAmount",
			check: func(t *testing.T, res ExtractionResult) {
				if res.TotalAmount != 0 {
					t.Errorf("totalAmount = %v, want 0", res.TotalAmount)
				}
			},
		},
		{
			name:        "line item without description skipped",
			raw:         `{"vendorName": "a", "totalAmount": 1, "currency": "USD", "lineItems": [{"amount": 5}, {"description": "ok"}], "confidence": {}, "warnings": []}`,
			wantWarning: "lineItems[0]",
			check: func(t *testing.T, res ExtractionResult) {
				if len(res.LineItems) != 1 || res.LineItems[0].Description != "ok" {
					t.Errorf("line items = %+v, want single item %q", res.LineItems, "ok")
				}
			},
		},
		{
			name:        "model warnings carried through",
			raw:         `{"vendorName": "a", "totalAmount": 1, "currency": "USD", "confidence": {}, "warnings": ["total is handwritten"]}`,
			wantWarning: "total is handwritten",
			check:       func(t *testing.T, res ExtractionResult) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ParseExtraction([]byte(tt.raw))
			if err != nil {
				t.Fatalf("ParseExtraction: %v", err)
			}
			tt.check(t, res)
			if tt.wantWarning != "" && !hasWarning(res.Warnings, tt.wantWarning) {
				t.Errorf("missing warning containing %q in %v", tt.wantWarning, res.Warnings)
			}
		})
	}
}

func TestParseExtractionConfidenceClamping(t *testing.T) {
	raw := `{
		"vendorName": "a", "totalAmount": 1, "currency": "USD",
		"confidence": {"vendorName": 1.4, "totalAmount": -0.2, "currency": 0.5},
		"warnings": []
	}`
	res, err := ParseExtraction([]byte(raw))
	if err != nil {
		t.Fatalf("ParseExtraction: %v", err)
	}

	if res.Confidence["vendorName"] != 1 {
		t.Errorf("confidence.vendorName = %v, want clamped to 1", res.Confidence["vendorName"])
	}
	if res.Confidence["totalAmount"] != 0 {
		t.Errorf("confidence.totalAmount = %v, want clamped to 0", res.Confidence["totalAmount"])
	}
	if res.Confidence["currency"] != 0.5 {
		t.Errorf("confidence.currency = %v, want 0.5", res.Confidence["currency"])
	}
	if !hasWarning(res.Warnings, "clamped") {
		t.Errorf("expected clamp warnings, got %v", res.Warnings)
	}
}

func TestValidateJSONAgainstSchema(t *testing.T) {
	schema := BuildInvoiceJSONSchema()

	if err := ValidateJSONAgainstSchema(schema, []byte(validResponse)); err != nil {
		t.Errorf("valid response rejected: %v", err)
	}
	if err := ValidateJSONAgainstSchema(schema, []byte(`{"vendorName": "a"}`)); err == nil {
		t.Error("response missing required fields passed validation")
	}
	if err := ValidateJSONAgainstSchema(schema, []byte(`not json`)); err == nil {
		t.Error("undecodable document passed validation")
	}
}
