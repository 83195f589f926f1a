package usecase

import (
	"strconv"
	"strings"

	"payment-matcher/internal/domain"
)

// FieldExtractor pulls one value out of a registration, or "" when absent.
type FieldExtractor func(domain.RegistrationRecord) string

// PathExtractor returns an extractor that walks the registration's nested
// data along path. Numeric segments index into arrays.
func PathExtractor(path ...string) FieldExtractor {
	return func(r domain.RegistrationRecord) string {
		return lookupString(r.Data, path...)
	}
}

// DefaultEmailExtractors lists the places a registration keeps the
// purchaser's email, in priority order.
func DefaultEmailExtractors() []FieldExtractor {
	return []FieldExtractor{
		PathExtractor("email"),
		PathExtractor("bookingContact", "email"),
		PathExtractor("attendees", "0", "email"),
		PathExtractor("contact", "email"),
	}
}

// DefaultFirstNameExtractors lists the places a registration keeps the first
// attendee's first name, in priority order.
func DefaultFirstNameExtractors() []FieldExtractor {
	return []FieldExtractor{
		PathExtractor("attendees", "0", "firstName"),
		PathExtractor("primaryAttendee", "firstName"),
		PathExtractor("bookingContact", "firstName"),
	}
}

// firstNonEmpty returns the first non-blank value produced by extractors.
func firstNonEmpty(r domain.RegistrationRecord, extractors []FieldExtractor) string {
	for _, extract := range extractors {
		if v := strings.TrimSpace(extract(r)); v != "" {
			return v
		}
	}
	return ""
}

func lookupString(data map[string]any, path ...string) string {
	var cur any = data
	for _, key := range path {
		switch node := cur.(type) {
		case map[string]any:
			cur = node[key]
		case []any:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= len(node) {
				return ""
			}
			cur = node[i]
		default:
			return ""
		}
	}
	s, _ := cur.(string)
	return s
}
