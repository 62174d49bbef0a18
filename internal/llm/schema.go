package llm

// BuildInvoiceJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. We pass this to the model as a structured output constraint
// and also use it locally to validate the response.
func BuildInvoiceJSONSchema() map[string]any {
	confidenceProp := func() map[string]any {
		return map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0}
	}

	props := map[string]any{
		"vendorName":     map[string]any{"type": "string", "minLength": 1},
		"invoiceDate":    map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`},
		"totalAmount":    map[string]any{"type": "number"},
		"currency":       map[string]any{"type": "string", "pattern": `^[A-Z]{3}$`},
		"invoiceNumber":  map[string]any{"type": "string"},
		"vatAmount":      map[string]any{"type": "number"},
		"subtotalAmount": map[string]any{"type": "number"},
		"lineItems": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"description": map[string]any{"type": "string"},
					"quantity":    map[string]any{"type": "number"},
					"unitPrice":   map[string]any{"type": "number"},
					"amount":      map[string]any{"type": "number"},
				},
				"required": []string{"description"},
			},
		},
		"confidence": map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties": map[string]any{
				"vendorName":  confidenceProp(),
				"invoiceDate": confidenceProp(),
				"totalAmount": confidenceProp(),
				"currency":    confidenceProp(),
			},
		},
		"warnings": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
	}
	required := []string{"vendorName", "totalAmount", "currency", "confidence", "warnings"}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}
