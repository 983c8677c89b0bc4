package gateway

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"
)

var (
	reBlankRuns  = regexp.MustCompile(`\n{3,}`)
	reHorizontal = regexp.MustCompile(`[ \t\f\v]+`)
	reDashArtif  = regexp.MustCompile(`\s*â+\s*R\$`)
	reCurrency   = regexp.MustCompile(`(R\$\s*\d+(?:\.\d{3})*)\.(\d{2})\b`)

	mojibakeMarkers = []string{"Ã", "Â", "¤", "â"}
	dashReplacer    = strings.NewReplacer("–", "-", "—", "-")
)

// NormalizeText prepares outbound copy for pt-BR handsets:
// line endings and whitespace runs are collapsed, UTF-8 read as latin-1 is
// repaired, text is NFC-composed, and R$ amounts use a decimal comma.
func NormalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = repairMojibake(s)
	s = norm.NFC.String(s)
	s = dashReplacer.Replace(s)
	s = reDashArtif.ReplaceAllString(s, " - R$")
	s = reCurrency.ReplaceAllString(s, "$1,$2")
	s = reHorizontal.ReplaceAllString(s, " ")
	s = reBlankRuns.ReplaceAllString(s, "\n\n")

	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	s = strings.Join(lines, "\n")
	s = reBlankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// repairMojibake undoes UTF-8 bytes that were decoded as a single-byte charset.
// The repair is kept only when it yields valid UTF-8 that differs from the input.
func repairMojibake(s string) string {
	suspicious := false
	for _, m := range mojibakeMarkers {
		if strings.Contains(s, m) {
			suspicious = true
			break
		}
	}
	if !suspicious {
		return s
	}
	for _, enc := range []encoding.Encoding{charmap.ISO8859_1, charmap.Windows1252} {
		b, err := enc.NewEncoder().Bytes([]byte(s))
		if err != nil || !utf8.Valid(b) {
			continue
		}
		if out := string(b); out != s {
			return out
		}
	}
	return s
}
