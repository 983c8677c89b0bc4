package inbound

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodePayload parses the webhook body into generic JSON values.
// Bodies that are not valid UTF-8 are re-read as Windows-1252, which some gateways
// emit for accented text.
func decodePayload(raw []byte) (any, bool) {
	b := bytes.TrimSpace(bytes.TrimPrefix(raw, utf8BOM))
	if len(b) == 0 {
		return nil, false
	}
	if !utf8.Valid(b) {
		d, err := charmap.Windows1252.NewDecoder().Bytes(b)
		if err != nil {
			d, err = charmap.ISO8859_1.NewDecoder().Bytes(b)
			if err != nil {
				return nil, false
			}
		}
		b = bytes.TrimSpace(bytes.TrimPrefix(d, utf8BOM))
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	return v, true
}

func asObject(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asArray(v any) []any {
	a, _ := v.([]any)
	return a
}

// lookup walks nested objects; it returns nil when any hop is missing or not an object.
func lookup(m map[string]any, path ...string) any {
	var cur any = m
	for _, k := range path {
		obj := asObject(cur)
		if obj == nil {
			return nil
		}
		cur = obj[k]
	}
	return cur
}

// text returns the trimmed string at path. Non-string values are never accepted.
func text(m map[string]any, path ...string) string {
	s, _ := lookup(m, path...).(string)
	return strings.TrimSpace(s)
}

// firstText probes each path in order and returns the first non-empty string.
func firstText(m map[string]any, paths ...[]string) string {
	for _, p := range paths {
		if s := text(m, p...); s != "" {
			return s
		}
	}
	return ""
}

// scalar renders strings and JSON numbers; phone numbers arrive as either.
func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "yes", "y", "on", "t":
			return true
		}
		return false
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	default:
		return false
	}
}

// digits keeps only ASCII digits of the part before any "@" suffix.
func digits(s string) string {
	if i := strings.IndexByte(s, '@'); i >= 0 {
		s = s[:i]
	}
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// unixTime reads seconds (or milliseconds) since epoch from a string or number.
func unixTime(v any) (time.Time, bool) {
	s := scalar(v)
	if s == "" {
		return time.Time{}, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return time.Time{}, false
	}
	if n > 1e12 {
		return time.UnixMilli(n).UTC(), true
	}
	return time.Unix(n, 0).UTC(), true
}
