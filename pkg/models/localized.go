package models

// Languages is the set of language codes the remote accepts in localized
// values.
var Languages = []string{"de", "en", "fr", "it"}

// LocalizedText is a map from language code to translation. It is the
// in-memory form of the remote's <values><de>…</de>…</values> payloads;
// the XML representation never escapes the codec layer.
type LocalizedText map[string]string

// Get returns the translation for lang, falling back to the first
// non-empty translation in Languages order.
func (t LocalizedText) Get(lang string) string {
	if v, ok := t[lang]; ok && v != "" {
		return v
	}
	for _, l := range Languages {
		if v, ok := t[l]; ok && v != "" {
			return v
		}
	}
	return ""
}

// Clone returns a shallow copy of the map. A nil map clones to nil.
func (t LocalizedText) Clone() LocalizedText {
	if t == nil {
		return nil
	}
	out := make(LocalizedText, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// IsEmpty reports whether the map carries no translations at all.
func (t LocalizedText) IsEmpty() bool {
	for _, v := range t {
		if v != "" {
			return false
		}
	}
	return true
}

// ToLocalizedText normalizes the shapes a localized value takes on after
// JSON or storage round trips. Non-string entries are dropped; non-map
// values yield nil.
func ToLocalizedText(v any) LocalizedText {
	switch t := v.(type) {
	case LocalizedText:
		return t
	case map[string]string:
		return LocalizedText(t)
	case map[string]any:
		out := make(LocalizedText, len(t))
		for k, s := range t {
			if str, ok := s.(string); ok {
				out[k] = str
			}
		}
		return out
	}
	return nil
}
