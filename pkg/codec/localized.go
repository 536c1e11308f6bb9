package codec

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/openmuni/cashsync/pkg/models"
)

// ErrMalformedLocalizedPayload marks a <values> fragment that could not
// be parsed.
var ErrMalformedLocalizedPayload = errors.New("malformed localized payload")

// localizedPrefix identifies localized values on the wire.
const localizedPrefix = "<values>"

// IsLocalizedPayload reports whether a wire string carries localized text.
func IsLocalizedPayload(s string) bool {
	return strings.HasPrefix(s, localizedPrefix)
}

// EncodeLocalized renders a localized map as the remote's
// <values><de>…</de>…</values> fragment. Known languages come first in
// their fixed order so the output is deterministic; unknown keys follow
// sorted. An empty map yields "".
func EncodeLocalized(t models.LocalizedText) string {
	if t.IsEmpty() {
		return ""
	}

	known := models.Languages
	extra := lo.Filter(lo.Keys(t), func(k string, _ int) bool {
		return !lo.Contains(known, k)
	})
	sort.Strings(extra)

	var b strings.Builder
	b.WriteString(localizedPrefix)
	for _, lang := range append(append([]string{}, known...), extra...) {
		v, ok := t[lang]
		if !ok {
			continue
		}
		b.WriteString("<" + lang + ">")
		_ = xml.EscapeText(&b, []byte(v))
		b.WriteString("</" + lang + ">")
	}
	b.WriteString("</values>")
	return b.String()
}

// DecodeLocalized parses a <values> fragment back into a localized map.
// The key set of the result is exactly the set of child elements.
func DecodeLocalized(s string) (models.LocalizedText, error) {
	dec := xml.NewDecoder(strings.NewReader(s))

	root, err := nextStart(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedLocalizedPayload, err)
	}
	if root.Name.Local != "values" {
		return nil, fmt.Errorf("%w: unexpected root element %q", ErrMalformedLocalizedPayload, root.Name.Local)
	}

	out := models.LocalizedText{}
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedLocalizedPayload, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		var text string
		if err := dec.DecodeElement(&text, &start); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedLocalizedPayload, err)
		}
		out[start.Name.Local] = text
	}
	return out, nil
}

func nextStart(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			return xml.StartElement{}, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start, nil
		}
	}
}
