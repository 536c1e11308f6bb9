package registry

import (
	"strconv"

	"github.com/openmuni/cashsync/pkg/models"
)

// asInt64 normalizes ids coming from typed code (int64), JSON round
// trips (float64) or wire payloads (string digits).
func asInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		return n, err == nil
	}
	return 0, false
}

func numberString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

func localizedValue(v any) models.LocalizedText {
	return models.ToLocalizedText(v)
}
