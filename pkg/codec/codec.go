// Package codec translates between local column-shaped data and the
// remote's wire conventions: camelCase keys, localized text as XML
// fragments, date formatting and JSON-stringified composites.
package codec

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/openmuni/cashsync/pkg/models"
)

// Fields the remote documents as JSON-stringified on upload. Everything
// else that is composite passes through as nested JSON.
var stringifiedFields = map[string]struct{}{
	"items":          {},
	"allocations":    {},
	"addresses":      {},
	"contacts":       {},
	"status":         {},
	"book_templates": {},
}

// Fields carrying boundary dates, formatted YYYY-MM-DD on the wire.
var dateOnlyFields = map[string]struct{}{
	"start": {},
	"end":   {},
}

// Fields carrying remote audit timestamps, parsed to UTC on download.
var auditTimeFields = map[string]struct{}{
	"created":      {},
	"last_updated": {},
}

const (
	wireDate     = "2006-01-02"
	wireDateTime = "2006-01-02 15:04:05"
)

// EncodeField translates one local (snake_case key, value) pair to its
// wire form. Encoding is total over well-typed input; the only returned
// errors come from JSON marshalling of stringified composites. A nil
// second return value means the field is omitted from the payload.
func EncodeField(key string, value any) (string, any, error) {
	wireKey := SnakeToCamel(key)

	switch v := value.(type) {
	case models.LocalizedText:
		if v.IsEmpty() {
			return wireKey, nil, nil
		}
		return wireKey, EncodeLocalized(v), nil
	case map[string]string:
		return EncodeField(key, models.LocalizedText(v))
	case time.Time:
		if _, ok := dateOnlyFields[key]; ok {
			return wireKey, v.Format(wireDate), nil
		}
		return wireKey, v.UTC().Format(time.RFC3339), nil
	}

	if _, ok := stringifiedFields[key]; ok && value != nil {
		raw, err := json.Marshal(value)
		if err != nil {
			return "", nil, fmt.Errorf("failed to stringify field %q: %w", key, err)
		}
		return wireKey, string(raw), nil
	}

	return wireKey, value, nil
}

// DecodeField translates one wire (camelCase key, value) pair back to its
// local form: snake_case key, localized maps for <values> strings and
// UTC times for audit fields.
func DecodeField(key string, value any) (string, any, error) {
	localKey := CamelToSnake(key)

	s, isString := value.(string)
	if !isString {
		return localKey, value, nil
	}

	if IsLocalizedPayload(s) {
		loc, err := DecodeLocalized(s)
		if err != nil {
			return "", nil, err
		}
		return localKey, loc, nil
	}

	if _, ok := auditTimeFields[localKey]; ok && s != "" {
		t, err := ParseRemoteTime(s)
		if err != nil {
			return "", nil, err
		}
		return localKey, t, nil
	}

	return localKey, value, nil
}

// ParseRemoteTime parses the remote's "YYYY-MM-DD HH:MM:SS.f" (and plain
// date) timestamps. The remote reports UTC without a zone designator, so
// the result is made timezone-aware in UTC.
func ParseRemoteTime(s string) (time.Time, error) {
	for _, layout := range []string{
		wireDateTime + ".999999",
		wireDateTime,
		wireDate,
	} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("failed to parse remote timestamp %q", s)
}

// Encode translates a full local payload to its wire form. Omitted
// fields (empty localized maps) are dropped.
func Encode(payload map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		wireKey, wireValue, err := EncodeField(k, v)
		if err != nil {
			return nil, err
		}
		if wireValue == nil && v != nil {
			continue
		}
		out[wireKey] = wireValue
	}
	return out, nil
}

// Decode translates a full wire payload to its local form.
func Decode(payload map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		localKey, localValue, err := DecodeField(k, v)
		if err != nil {
			return nil, err
		}
		out[localKey] = localValue
	}
	return out, nil
}
