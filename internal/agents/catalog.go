package agents

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// CatalogSource provides a plain-text preview of products and prices.
type CatalogSource interface {
	Preview(ctx context.Context) (string, error)
}

// NoCatalog is used when no catalog is configured.
type NoCatalog struct{}

func (NoCatalog) Preview(context.Context) (string, error) { return "", nil }

// FileCatalog reads the preview from a text file on every call so edits are
// picked up without a restart.
type FileCatalog struct {
	Path string
}

func (f FileCatalog) Preview(context.Context) (string, error) {
	if f.Path == "" {
		return "", nil
	}
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("agents: read catalog preview: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func previewLines(preview string) []string {
	var out []string
	for _, l := range strings.Split(preview, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
