package driven

import "context"

// Translator maps enum-coded source values onto their outward-facing
// equivalents.
type Translator interface {
	// TranslateEnumValue returns the mapped value for an enum field, or ""
	// when no mapping exists for the source value.
	TranslateEnumValue(ctx context.Context, enumName, sourceValue string) (string, error)
}
