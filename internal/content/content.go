// Package content defines the kinds of markup the generator can produce.
package content

import "fmt"

// Kind identifies the markup format of a generated artifact.
type Kind string

const (
	// KindSVG is standalone animated vector graphics markup.
	KindSVG Kind = "svg"
	// KindHTML is a self-contained animated HTML document.
	KindHTML Kind = "html"
)

// ParseKind converts a wire value into a Kind. An empty value defaults to SVG.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "", string(KindSVG):
		return KindSVG, nil
	case string(KindHTML):
		return KindHTML, nil
	default:
		return "", fmt.Errorf("unsupported content type %q (want svg or html)", s)
	}
}

// Valid reports whether k is a recognized kind.
func (k Kind) Valid() bool {
	return k == KindSVG || k == KindHTML
}
