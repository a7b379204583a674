// Package http provides the JSON API server and its handlers.
//
// This file implements helpers for decoding request bodies, path values and
// query parameters into domain values.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"granttrack/internal/core"
)

const maxBodyBytes = 1 << 20

// Amount accepts either a JSON number or a JSON string ("1,234.50" is not
// accepted, "1234.50" and "1234,50" are).
type Amount string

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("amount must be a number or a string")
	}
	*a = Amount(n.String())
	return nil
}

// Parse validates the amount, reporting problems against field.
func (a Amount) Parse(field string) (decimal.Decimal, error) {
	d, err := core.ParseAmount(string(a))
	if err != nil {
		var ve *core.ValidationError
		if errors.As(err, &ve) {
			ve.Field = field
		}
		return decimal.Zero, err
	}
	return d, nil
}

// DecodeJSON reads a single JSON object from the request body into dst.
// Unknown fields, trailing data and oversized bodies are validation errors.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return &core.ValidationError{Field: "body", Reason: "request body is empty"}
		case errors.As(err, &maxErr):
			return &core.ValidationError{Field: "body", Reason: fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit)}
		default:
			return &core.ValidationError{Field: "body", Reason: err.Error()}
		}
	}
	if dec.More() {
		return &core.ValidationError{Field: "body", Reason: "request body must contain a single JSON object"}
	}
	return nil
}

// PathID parses the named path value as a positive id.
func PathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &core.ValidationError{Field: name, Reason: fmt.Sprintf("%q is not a valid id", raw)}
	}
	return id, nil
}

// QueryID parses an optional positive id from the query string; absent means 0.
func QueryID(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &core.ValidationError{Field: name, Reason: fmt.Sprintf("%q is not a valid id", raw)}
	}
	return id, nil
}

// ParseDateField parses YYYY-MM-DD; an empty value yields the zero date.
func ParseDateField(field, s string) (core.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, &core.ValidationError{Field: field, Reason: "expected YYYY-MM-DD", Err: core.ErrInvalidDate}
	}
	return d, nil
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// Format returns the requested representation: "json" (default), "csv" or "text".
func Format(r *http.Request) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format"))); f {
	case "", "json":
		return "json", nil
	case "csv", "text":
		return f, nil
	default:
		return "", &core.ValidationError{Field: "format", Reason: "must be json, csv or text"}
	}
}
