package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var reCurrency = regexp.MustCompile(`^[A-Z]{3}$`)

// ValidateJSONAgainstSchema validates doc against the given generic-map
// schema. The returned error is a *jsonschema.ValidationError for schema
// violations.
func ValidateJSONAgainstSchema(schema map[string]any, doc []byte) error {
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	sch, err := jsonschema.CompileString("invoice.schema.json", string(schemaJSON))
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(doc, &v); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return sch.Validate(v)
}

// ParseExtraction decodes a model response into an ExtractionResult. Schema
// violations are downgraded to Warnings entries and the offending field is
// zeroed or clamped; the only hard error is JSON that cannot be decoded at
// all. A best-effort result is always produced otherwise, since downstream
// review catches residual issues.
func ParseExtraction(raw []byte) (ExtractionResult, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return ExtractionResult{}, fmt.Errorf("decode model response: %w", err)
	}

	res := ExtractionResult{
		Confidence: map[string]float64{},
		Warnings:   []string{},
	}

	// Record schema-level violations as warnings up front; the field-wise
	// coercion below then keeps whatever is individually salvageable.
	if err := ValidateJSONAgainstSchema(BuildInvoiceJSONSchema(), raw); err != nil {
		if ve, ok := err.(*jsonschema.ValidationError); ok {
			for _, msg := range flattenValidationError(ve) {
				res.Warnings = append(res.Warnings, "schema: "+msg)
			}
		} else {
			res.Warnings = append(res.Warnings, "schema: "+err.Error())
		}
	}

	if s, ok := asString(m["vendorName"]); ok && s != "" {
		res.VendorName = s
	} else {
		res.Warnings = append(res.Warnings, "vendorName missing or not a string")
	}

	if f, ok := asNumber(m["totalAmount"]); ok {
		res.TotalAmount = f
	} else {
		res.Warnings = append(res.Warnings, "totalAmount missing or not a number")
	}

	if s, ok := asString(m["currency"]); ok && s != "" {
		cur := strings.ToUpper(s)
		if reCurrency.MatchString(cur) {
			res.Currency = cur
		} else {
			res.Warnings = append(res.Warnings, fmt.Sprintf("currency %q is not a 3-letter ISO 4217 code", s))
		}
	} else {
		res.Warnings = append(res.Warnings, "currency missing or not a string")
	}

	if s, ok := asString(m["invoiceDate"]); ok && s != "" {
		if reDate.MatchString(s) {
			res.InvoiceDate = s
		} else {
			res.Warnings = append(res.Warnings, fmt.Sprintf("invoiceDate %q is not YYYY-MM-DD", s))
		}
	}

	if s, ok := asString(m["invoiceNumber"]); ok {
		res.InvoiceNumber = s
	}
	if f, ok := asNumber(m["vatAmount"]); ok {
		res.VATAmount = &f
	}
	if f, ok := asNumber(m["subtotalAmount"]); ok {
		res.SubtotalAmount = &f
	}

	res.LineItems = parseLineItems(m["lineItems"], &res.Warnings)
	parseConfidence(m["confidence"], &res)
	parseModelWarnings(m["warnings"], &res)

	return res, nil
}

var reDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

func parseLineItems(v any, warnings *[]string) []LineItem {
	arr, ok := v.([]any)
	if !ok {
		if v != nil {
			*warnings = append(*warnings, "lineItems is not an array")
		}
		return nil
	}
	items := make([]LineItem, 0, len(arr))
	for i, el := range arr {
		obj, ok := el.(map[string]any)
		if !ok {
			*warnings = append(*warnings, fmt.Sprintf("lineItems[%d] is not an object", i))
			continue
		}
		desc, ok := asString(obj["description"])
		if !ok || desc == "" {
			*warnings = append(*warnings, fmt.Sprintf("lineItems[%d] missing description", i))
			continue
		}
		item := LineItem{Description: desc}
		if f, ok := asNumber(obj["quantity"]); ok {
			item.Quantity = &f
		}
		if f, ok := asNumber(obj["unitPrice"]); ok {
			item.UnitPrice = &f
		}
		if f, ok := asNumber(obj["amount"]); ok {
			item.Amount = &f
		}
		items = append(items, item)
	}
	return items
}

func parseConfidence(v any, res *ExtractionResult) {
	obj, ok := v.(map[string]any)
	if !ok {
		res.Warnings = append(res.Warnings, "confidence missing or not an object")
		return
	}
	for field, raw := range obj {
		f, ok := asNumber(raw)
		if !ok {
			res.Warnings = append(res.Warnings, fmt.Sprintf("confidence.%s is not a number", field))
			continue
		}
		if f < 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("confidence.%s below 0, clamped", field))
			f = 0
		}
		if f > 1 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("confidence.%s above 1, clamped", field))
			f = 1
		}
		res.Confidence[field] = f
	}
}

func parseModelWarnings(v any, res *ExtractionResult) {
	arr, ok := v.([]any)
	if !ok {
		if v == nil {
			res.Warnings = append(res.Warnings, "warnings missing")
		}
		return
	}
	for _, el := range arr {
		if s, ok := el.(string); ok {
			res.Warnings = append(res.Warnings, s)
		}
	}
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return strings.TrimSpace(s), ok
}

func asNumber(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

// flattenValidationError collects leaf messages from a nested validation error.
func flattenValidationError(ve *jsonschema.ValidationError) []string {
	if len(ve.Causes) == 0 {
		loc := ve.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		return []string{fmt.Sprintf("%s: %s", loc, ve.Message)}
	}
	var out []string
	for _, c := range ve.Causes {
		out = append(out, flattenValidationError(c)...)
	}
	return out
}
