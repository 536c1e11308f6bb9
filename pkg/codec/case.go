package codec

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// SnakeToCamel converts a local snake_case key to the remote's camelCase
// form, e.g. "is_default" -> "isDefault".
func SnakeToCamel(key string) string {
	parts := strings.Split(key, "_")
	if len(parts) == 1 {
		return key
	}
	var b strings.Builder
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		b.WriteString(titleCaser.String(strings.ToLower(p)))
	}
	return b.String()
}

// CamelToSnake converts a remote camelCase key to the local snake_case
// form, e.g. "lastUpdatedBy" -> "last_updated_by".
func CamelToSnake(key string) string {
	var b strings.Builder
	for i, r := range key {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
