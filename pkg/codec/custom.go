package codec

import (
	json "github.com/goccy/go-json"
)

// CustomBinding maps one local field to the remote custom-field slot
// (e.g. "customField12") it is transported in.
type CustomBinding struct {
	Local  string
	Remote string
}

// PackCustom moves the declared local fields out of payload and into a
// single "custom" map keyed by the remote field names. Locals that are
// absent or nil are skipped; when nothing is bound the "custom" key is
// not added.
func PackCustom(payload map[string]any, bindings []CustomBinding) {
	if len(bindings) == 0 {
		return
	}
	custom := make(map[string]any)
	for _, b := range bindings {
		v, ok := payload[b.Local]
		if !ok {
			continue
		}
		delete(payload, b.Local)
		if v == nil {
			continue
		}
		custom[b.Remote] = v
	}
	if len(custom) > 0 {
		payload["custom"] = custom
	}
}

// UnpackCustom is the inverse of PackCustom: declared remote fields from
// the payload's "custom" map are assigned back to their local names.
// Unknown custom fields in the downloaded payload are discarded together
// with the "custom" key itself. The map may arrive JSON-stringified.
func UnpackCustom(payload map[string]any, bindings []CustomBinding) {
	raw, ok := payload["custom"]
	if !ok {
		return
	}
	delete(payload, "custom")

	var custom map[string]any
	switch v := raw.(type) {
	case map[string]any:
		custom = v
	case string:
		if err := json.Unmarshal([]byte(v), &custom); err != nil {
			return
		}
	default:
		return
	}

	for _, b := range bindings {
		if v, ok := custom[b.Remote]; ok {
			payload[b.Local] = v
		}
	}
}
