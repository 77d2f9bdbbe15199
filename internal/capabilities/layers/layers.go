// Package layers locates layer nodes inside a capabilities tree.
package layers

import (
	"strings"

	"github.com/mohammed-shakir/wms-catalog/internal/capabilities/tree"
)

// Find returns the first node, in document order, whose Name or Title equals
// name. The search descends depth-first through nested Layer fields.
func Find(node *tree.Node, name string) *tree.Node {
	if node == nil || name == "" {
		return nil
	}
	if node.IsSequence() {
		for _, it := range node.Items() {
			if found := Find(it, name); found != nil {
				return found
			}
		}
		return nil
	}
	if node.Str("Name") == name || node.Str("Title") == name {
		return node
	}
	for _, child := range node.Get("Layer").All() {
		if found := Find(child, name); found != nil {
			return found
		}
	}
	return nil
}

// FindAll resolves each comma-separated name independently from start. The
// result has one slot per requested name, nil where nothing matched.
func FindAll(start *tree.Node, names string) []*tree.Node {
	requested := Split(names)
	out := make([]*tree.Node, len(requested))
	for i, name := range requested {
		out[i] = Find(start, name)
	}
	return out
}

// FindInCapabilities runs FindAll from the Capability/Layer element of a
// capabilities document.
func FindInCapabilities(doc *tree.Node, names string) []*tree.Node {
	return FindAll(doc.Get("Capability").Get("Layer"), names)
}

// Split breaks a layer list on commas. Surrounding whitespace is trimmed;
// empty entries are kept so positions line up with the request.
func Split(names string) []string {
	parts := strings.Split(names, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// First returns the first name of a comma-separated list.
func First(names string) string {
	return Split(names)[0]
}

// Missing lists the requested names that have no match in found.
func Missing(names string, found []*tree.Node) []string {
	var out []string
	for i, name := range Split(names) {
		if i >= len(found) || found[i] == nil {
			out = append(out, name)
		}
	}
	return out
}

// Complete reports whether every slot was resolved.
func Complete(found []*tree.Node) bool {
	if len(found) == 0 {
		return false
	}
	for _, l := range found {
		if l == nil {
			return false
		}
	}
	return true
}
