package cashctrl

import (
	"fmt"
	"net/url"
	"strconv"

	json "github.com/goccy/go-json"
)

// FormValues flattens a codec-encoded payload into the form fields of a
// create/update POST. Scalars keep their plain representation; any
// composite left after encoding is sent as nested JSON.
func FormValues(payload map[string]any) (url.Values, error) {
	form := url.Values{}
	for k, v := range payload {
		s, err := formValue(k, v)
		if err != nil {
			return nil, err
		}
		form.Set(k, s)
	}
	return form, nil
}

func formValue(key string, v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("failed to encode form field %q: %w", key, err)
		}
		return string(raw), nil
	}
}
