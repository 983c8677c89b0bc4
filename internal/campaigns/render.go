package campaigns

import "regexp"

var rePlaceholder = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// Render replaces {name} placeholders with vars[name]. Placeholders without a
// value are left untouched.
func Render(s string, vars map[string]string) string {
	return rePlaceholder.ReplaceAllStringFunc(s, func(m string) string {
		if v, ok := vars[m[1:len(m)-1]]; ok {
			return v
		}
		return m
	})
}

// Placeholders lists the distinct placeholder names in s, in order of appearance.
func Placeholders(s string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range rePlaceholder.FindAllStringSubmatch(s, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}
