// Package keys derives stable identifiers for catalog items.
package keys

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/wms-catalog/internal/capabilities/layers"
	"github.com/mohammed-shakir/wms-catalog/internal/core/ogc"
)

const maxLabelLen = 48

// ItemID is a deterministic id for a service URL and layer list. The label
// is the first layer name made key-safe; the suffix hashes the normalized
// source so spacing and query strings in the URL do not matter.
func ItemID(url, layerList string) string {
	src := Source(url, layerList)
	label := sanitize(layers.First(layerList))
	if len(label) > maxLabelLen {
		label = label[:maxLabelLen]
	}
	label = strings.Trim(label, "-_")
	if label == "" {
		label = "item"
	}
	return fmt.Sprintf("%s-%016x", label, xxhash.Sum64String(src))
}

// Source is the normalized form hashed by ItemID.
func Source(url, layerList string) string {
	names := layers.Split(layerList)
	return strings.TrimSpace(ogc.CleanURL(strings.TrimSpace(url))) + "|" + strings.Join(names, ",")
}

// StoreKey namespaces an item id for the item store.
func StoreKey(prefix, id string) string {
	return prefix + sanitize(id)
}

// ValidID reports whether id is already key-safe.
func ValidID(id string) bool {
	return id != "" && sanitize(id) == id
}

func sanitize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == ':' || r == '_' || r == '-' || r == '.':
			out = r
		default:
			// Any other rune (including non-ASCII) becomes '-'
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r <= unicode.MaxASCII && unicode.IsDigit(r))
}
