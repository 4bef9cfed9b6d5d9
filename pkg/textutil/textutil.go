// Package textutil provides the text-cleaning helpers shared by all source
// adapters.
package textutil

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var nonNumericRe = regexp.MustCompile(`[^\d.,]`)

// CleanText collapses internal whitespace and trims the ends.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ExtractNumber pulls a numeric value out of free text such as
// "USD 185.000" or "120,5 m²". Returns nil when no number is present.
// Argentine sites use the dot as thousands separator and the comma as
// decimal separator.
func ExtractNumber(s string) *float64 {
	cleaned := nonNumericRe.ReplaceAllString(s, "")
	if cleaned == "" {
		return nil
	}

	if strings.Contains(cleaned, ",") {
		// Dot is a thousands separator when a comma follows.
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	} else if dots := strings.Count(cleaned, "."); dots > 1 {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
	} else if dots == 1 {
		// A lone dot followed by exactly three digits is a thousands
		// separator ("185.000"), otherwise a decimal point.
		if idx := strings.Index(cleaned, "."); len(cleaned)-idx-1 == 3 {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
		}
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}

	return &v
}

// ExtractInt is ExtractNumber truncated to an int pointer.
func ExtractInt(s string) *int {
	v := ExtractNumber(s)
	if v == nil {
		return nil
	}

	i := int(*v)

	return &i
}

// AbsoluteURL resolves ref against base. Already-absolute refs pass through
// unchanged; unresolvable refs come back as given.
func AbsoluteURL(base, ref string) string {
	if ref == "" {
		return ""
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}

	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}

	return baseURL.ResolveReference(refURL).String()
}

// Truncate shortens s to max runes with an ellipsis.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}

	return string(runes[:max]) + "..."
}
