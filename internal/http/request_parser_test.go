package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"granttrack/internal/core"
)

func TestAmountUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{name: "number", body: `{"amount": 1234.5}`, want: "1234.50"},
		{name: "string", body: `{"amount": "99.999"}`, want: "100.00"},
		{name: "comma decimal", body: `{"amount": "12,34"}`, want: "12.34"},
		{name: "zero", body: `{"amount": 0}`, want: "0.00"},
		{name: "negative", body: `{"amount": -5}`, wantErr: true},
		{name: "missing", body: `{}`, wantErr: true},
		{name: "not a number", body: `{"amount": "abc"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var body amountRequest
			if err := DecodeJSON(httptest.NewRecorder(), req, &body); err != nil {
				t.Fatalf("DecodeJSON: %v", err)
			}
			got, err := body.Amount.Parse("amount")
			if tt.wantErr {
				var ve *core.ValidationError
				if !errors.As(err, &ve) || ve.Field != "amount" {
					t.Fatalf("expected amount validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if got.StringFixed(2) != tt.want {
				t.Errorf("amount = %s, want %s", got.StringFixed(2), tt.want)
			}
		})
	}
}

func TestDecodeJSONRejectsBadBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty", body: ""},
		{name: "unknown field", body: `{"name": "x", "colour": "red"}`},
		{name: "malformed", body: `{"name": `},
		{name: "trailing object", body: `{"name": "a"} {"name": "b"}`},
		{name: "too large", body: `{"name": "` + strings.Repeat("x", maxBodyBytes) + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var body renameRequest
			err := DecodeJSON(httptest.NewRecorder(), req, &body)
			if !core.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestPathAndQueryIDs(t *testing.T) {
	mux := http.NewServeMux()
	var gotID, gotLine int64
	var pathErr, queryErr error
	mux.HandleFunc("GET /grants/{id}", func(w http.ResponseWriter, r *http.Request) {
		gotID, pathErr = PathID(r, "id")
		gotLine, queryErr = QueryID(r, "line_item_id")
	})

	tests := []struct {
		target       string
		wantID       int64
		wantLine     int64
		wantPathErr  bool
		wantQueryErr bool
	}{
		{target: "/grants/7", wantID: 7},
		{target: "/grants/7?line_item_id=3", wantID: 7, wantLine: 3},
		{target: "/grants/abc", wantPathErr: true},
		{target: "/grants/0", wantPathErr: true},
		{target: "/grants/7?line_item_id=-1", wantID: 7, wantQueryErr: true},
	}

	for _, tt := range tests {
		mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.target, nil))
		if (pathErr != nil) != tt.wantPathErr || (queryErr != nil) != tt.wantQueryErr {
			t.Errorf("%s: path err %v, query err %v", tt.target, pathErr, queryErr)
			continue
		}
		if !tt.wantPathErr && gotID != tt.wantID {
			t.Errorf("%s: id = %d, want %d", tt.target, gotID, tt.wantID)
		}
		if !tt.wantQueryErr && gotLine != tt.wantLine {
			t.Errorf("%s: line item = %d, want %d", tt.target, gotLine, tt.wantLine)
		}
	}
}

func TestParseDateField(t *testing.T) {
	d, err := ParseDateField("start_date", " 2024-01-15 ")
	if err != nil || d.String() != "2024-01-15" {
		t.Fatalf("ParseDateField = %v, %v", d, err)
	}
	if d, err := ParseDateField("start_date", ""); err != nil || !d.IsZero() {
		t.Fatalf("empty date should be zero, got %v, %v", d, err)
	}
	_, err = ParseDateField("end_date", "15/01/2024")
	var ve *core.ValidationError
	if !errors.As(err, &ve) || ve.Field != "end_date" {
		t.Fatalf("expected end_date validation error, got %v", err)
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := map[string]string{
		"  Travel  ":        "Travel",
		"line\x00item":      "lineitem",
		"keep\ttabs\nlines": "keep\ttabs\nlines",
		"\x07bell":          "bell",
	}
	for in, want := range tests {
		if got := sanitizeInput(in); got != want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFormat(t *testing.T) {
	for query, want := range map[string]string{"": "json", "?format=CSV": "csv", "?format=text": "text"} {
		got, err := Format(httptest.NewRequest(http.MethodGet, "/"+query, nil))
		if err != nil || got != want {
			t.Errorf("Format(%q) = %q, %v; want %q", query, got, err, want)
		}
	}
	if _, err := Format(httptest.NewRequest(http.MethodGet, "/?format=xml", nil)); !core.IsValidation(err) {
		t.Errorf("expected validation error for xml, got %v", err)
	}
}
