// Package sanitize extracts a single well-formed markup fragment from raw,
// untrusted model output. Extraction is structural text slicing only; nothing
// is executed or rendered, and cleaning already-clean input is a no-op.
package sanitize

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/everstacklabs/inkgen/internal/content"
)

// ErrNoValidFragment is returned when no recognizable fragment of the
// requested kind survives cleaning.
var ErrNoValidFragment = errors.New("sanitize: no valid markup fragment found")

var (
	fenceRe   = regexp.MustCompile("(?i)```(?:svg|xml|html)?[ \t]*\r?\n?")
	svgFullRe = regexp.MustCompile(`(?is)<svg.*</svg>`)
	svgOpenRe = regexp.MustCompile(`(?is)<svg.*`)
)

// Clean normalizes raw model text into embeddable markup of the given kind.
//
// Decision table:
//
//	kind  input shape                     result
//	----  ------------------------------  ------------------------------------
//	svg   <svg ...> ... </svg> anywhere   slice to the last closing tag
//	svg   <svg ...> with no closing tag   slice plus a synthetic </svg>
//	svg   no <svg at all                  ErrNoValidFragment
//	html  full document (doctype/<html>)  verbatim document slice
//	html  body-only element fragment      fragment wrapped in a minimal shell
//	html  no discernible markup           raw text wrapped in the same shell
//
// Documents are schema-flexible so the html branch never fails; graphics are
// not, hence the asymmetry.
func Clean(raw string, kind content.Kind) (string, error) {
	switch kind {
	case content.KindHTML:
		return cleanHTML(raw), nil
	case content.KindSVG:
		return cleanSVG(raw)
	default:
		return "", fmt.Errorf("sanitize: unknown content kind %q", kind)
	}
}

// stripFences removes markdown code-fence delimiters. Fences are explicit
// decoration and safe to delete wholesale.
func stripFences(s string) string {
	return strings.TrimSpace(fenceRe.ReplaceAllString(strings.TrimSpace(s), ""))
}

func cleanSVG(raw string) (string, error) {
	cleaned := stripFences(raw)

	// Greedy to the last </svg>, tolerating nested svg elements and skipping
	// any leading prose or XML declarations.
	if m := svgFullRe.FindString(cleaned); m != "" {
		return strings.TrimSpace(m), nil
	}

	// Opening tag with no close: take the rest and close it synthetically.
	if m := svgOpenRe.FindString(cleaned); m != "" {
		return strings.TrimSpace(m) + "</svg>", nil
	}

	return "", ErrNoValidFragment
}

func cleanHTML(raw string) string {
	cleaned := stripFences(raw)
	lower := strings.ToLower(cleaned)

	// Full document: slice from the declaration (or root element) verbatim.
	start := strings.Index(lower, "<!doctype")
	if start == -1 {
		start = strings.Index(lower, "<html")
	}
	if start != -1 {
		doc := cleaned[start:]
		if end := strings.LastIndex(strings.ToLower(doc), "</html>"); end != -1 {
			doc = doc[:end+len("</html>")]
		} else {
			doc += "</html>"
		}
		return strings.TrimSpace(doc)
	}

	// Body-only fragment, or bare text as a last resort. Either way the
	// payload goes into the shell unchanged.
	return fmt.Sprintf(docShell, cleaned)
}

const docShell = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
</head>
<body>
%s
</body>
</html>`

// HasElements reports whether the text parses to at least one element in the
// document body. Useful for telling a markup fragment apart from prose.
func HasElements(s string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return false
	}
	return doc.Find("body").Children().Length() > 0
}
