// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// Every parser is tolerant: malformed input degrades to a neutral value and
// never fails the request.

package http

import (
	"net/http"
	"net/url"
	"unicode/utf8"

	"finview/internal/core"

	"github.com/shopspring/decimal"
)

const (
	maxQueryRunes = 100
	maxPriceLen   = 32
)

// maxPrice caps the estimator input at one billion.
var maxPrice = decimal.New(1, 9)

// ParsePrice reads the estimator price. Blank, malformed, oversized,
// negative and out-of-range values yield zero, which leaves the estimator
// inactive.
func ParsePrice(v string) decimal.Decimal {
	v = sanitizeInput(v)
	if v == "" || len(v) > maxPriceLen {
		return decimal.Zero
	}
	p := core.ParseAmount(v)
	if p.IsNegative() || p.GreaterThan(maxPrice) {
		return decimal.Zero
	}
	return p
}

// ParseCategoryParam maps a request value to a category, returning fallback
// when the value is blank. Unknown names are reported as an error.
func ParseCategoryParam(v string, fallback core.Category) (core.Category, error) {
	v = sanitizeInput(v)
	if v == "" {
		return fallback, nil
	}
	return core.ParseCategory(v)
}

// ParseQuery sanitises a ledger search term and caps its length.
func ParseQuery(values url.Values) string {
	q := sanitizeInput(values.Get("q"))
	if utf8.RuneCountInString(q) <= maxQueryRunes {
		return q
	}
	return string([]rune(q)[:maxQueryRunes])
}

// ParseFormOrFail parses the request form and returns an error response on failure.
// Returns nil on success.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Invalid request format")
	}
	return nil
}
