// Package http provides the JSON API server and its handlers.
//
// This file implements utilities for parsing and validating HTTP request data:
// transaction bodies (JSON or form-encoded), query filters and path ids.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"wallet/internal/core"
)

// maxBodyBytes bounds transaction request bodies.
const maxBodyBytes = 1 << 20

var errInvalidBody = errors.New("invalid request body")

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data. JSON numbers are
// kept as json.Number so amounts do not pass through float64.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		p.err = fmt.Errorf("%w: %v", errInvalidBody, p.err)
		return p.err
	}

	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.IsJSONContent() || trimmed[0] == '{' || trimmed[0] == '[' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&p.jsonData); err != nil {
			p.jsonData = nil
			p.err = fmt.Errorf("%w: %v", errInvalidBody, err)
			return p.err
		}
		if p.jsonData == nil {
			p.jsonData = map[string]any{}
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(trimmed))
	if p.err != nil {
		p.err = fmt.Errorf("%w: %v", errInvalidBody, p.err)
	}
	return p.err
}

// Value returns the raw value for key, or nil when the key is absent.
// Strings have control characters removed; form values are also trimmed.
func (p *RequestBodyParser) Value(key string) any {
	if p.jsonData != nil {
		v, ok := p.jsonData[key]
		if !ok {
			return nil
		}
		if s, ok := v.(string); ok {
			return stripControl(s)
		}
		return v
	}
	if p.formData != nil && p.formData.Has(key) {
		return sanitizeInput(p.formData.Get(key))
	}
	return nil
}

// RawInput maps the parsed body onto the transaction input fields.
func (p *RequestBodyParser) RawInput() core.RawInput {
	return core.RawInput{
		Type:        p.Value("type"),
		Amount:      p.Value("amount"),
		Category:    p.Value("category"),
		Description: p.Value("description"),
		Date:        p.Value("date"),
	}
}

// IsJSONContent reports whether the Content-Type header names JSON.
func (p *RequestBodyParser) IsJSONContent() bool {
	return strings.Contains(strings.ToLower(p.contentType), "json")
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// ParseTransactionInput reads and parses a transaction body in one step.
func ParseTransactionInput(w http.ResponseWriter, r *http.Request) (core.RawInput, error) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		return core.RawInput{}, err
	}
	return p.RawInput(), nil
}

// ParseFilterOptions reads query filters. Unknown enum values and malformed
// dates are errors; absent values keep their defaults.
func ParseFilterOptions(query url.Values) (core.FilterOptions, error) {
	var (
		opts core.FilterOptions
		err  error
	)

	opts.Search = sanitizeInput(query.Get("search"))
	opts.Category = sanitizeInput(query.Get("category"))

	if opts.Type, err = core.ParseTypeFilter(strings.TrimSpace(query.Get("type"))); err != nil {
		return opts, err
	}
	if opts.SortBy, err = core.ParseSortField(strings.TrimSpace(query.Get("sortBy"))); err != nil {
		return opts, err
	}
	if opts.SortOrder, err = core.ParseSortOrder(strings.TrimSpace(query.Get("sortOrder"))); err != nil {
		return opts, err
	}
	if opts.DateFrom, err = parseQueryDate(query, "dateFrom"); err != nil {
		return opts, err
	}
	if opts.DateTo, err = parseQueryDate(query, "dateTo"); err != nil {
		return opts, err
	}
	return opts, nil
}

func parseQueryDate(query url.Values, key string) (core.Date, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// ParseID reads the {id} path parameter as a positive integer.
func ParseID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid transaction id %q", raw)
	}
	return id, nil
}
