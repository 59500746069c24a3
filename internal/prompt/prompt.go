// Package prompt builds backend instructions for markup generation.
// Build is pure: identical inputs always produce identical instructions.
package prompt

import (
	"fmt"
	"strings"

	"github.com/everstacklabs/inkgen/internal/content"
)

// ModeKind discriminates the generation mode.
type ModeKind int

const (
	// ModeCreate generates a fresh artifact from the description alone.
	ModeCreate ModeKind = iota
	// ModeModify iterates on a previously generated artifact.
	ModeModify
)

// Mode is the generation mode, fixed at request validation time.
// For ModeModify it carries the prior artifact and its description.
type Mode struct {
	Kind             ModeKind
	PriorOutput      string
	PriorDescription string
}

// Create returns the fresh-generation mode.
func Create() Mode {
	return Mode{Kind: ModeCreate}
}

// Modify returns the iteration mode over a prior artifact.
func Modify(priorOutput, priorDescription string) Mode {
	return Mode{Kind: ModeModify, PriorOutput: priorOutput, PriorDescription: priorDescription}
}

// ModeFor derives the mode from optional request fields. The mode is keyed on
// the presence of prior output; a prior description alone means Create.
func ModeFor(priorOutput, priorDescription string) Mode {
	if strings.TrimSpace(priorOutput) == "" {
		return Create()
	}
	return Modify(priorOutput, priorDescription)
}

const svgCreateTemplate = `You are a professional SVG animation designer. Based on the user's description, produce a complete, working animated SVG.

Requirements:
1. The SVG must be complete, valid XML
2. It must include animation (use <animate>, <animateTransform> or CSS animations)
3. The animation should be smooth and visually pleasing
4. It must be self-contained: no external images, fonts, or scripts
5. Return only the SVG code, with no explanation and no markdown code fences
6. The SVG should be centered and suitable for embedding in a web page

User description: %s

SVG code:`

const svgModifyTemplate = `You are a professional SVG animation designer. The user wants to modify an existing animated SVG.

Original SVG code:
%s

%sThe user's new request: %s

Modify the SVG above according to the new request. Requirements:
1. Keep the original SVG's overall style and structure except where the new request demands a change
2. The result must be complete, valid XML
3. It must include animation (use <animate>, <animateTransform> or CSS animations)
4. It must be self-contained: no external images, fonts, or scripts
5. Return only the modified SVG code, with no explanation and no markdown code fences
6. The SVG should be centered and suitable for embedding in a web page

Modified SVG code:`

const htmlCreateTemplate = `You are a professional web animation developer. Based on the user's description, produce a complete, self-contained animated HTML page.

Requirements:
1. Produce one complete HTML document with a doctype, head, and body
2. All CSS and JavaScript must be inline; no external stylesheets, scripts, fonts, or images
3. The page must include animation (CSS animations or JavaScript)
4. The animation should be smooth and visually pleasing
5. Return only the HTML code, with no explanation and no markdown code fences
6. The page should render well on both desktop and mobile viewports

User description: %s

HTML code:`

const htmlModifyTemplate = `You are a professional web animation developer. The user wants to modify an existing self-contained animated HTML page.

Original HTML code:
%s

%sThe user's new request: %s

Modify the HTML above according to the new request. Requirements:
1. Keep the original page's overall style and structure except where the new request demands a change
2. Produce one complete HTML document with a doctype, head, and body
3. All CSS and JavaScript must stay inline; no external references
4. The page must include animation (CSS animations or JavaScript)
5. Return only the modified HTML code, with no explanation and no markdown code fences

Modified HTML code:`

// Build maps (kind, mode, description) to a backend instruction. It never
// fails; callers reject empty descriptions before building.
func Build(kind content.Kind, mode Mode, description string) string {
	switch mode.Kind {
	case ModeModify:
		// The prior description is context for the model, not a second
		// instruction to fulfill.
		priorDesc := ""
		if mode.PriorDescription != "" {
			priorDesc = fmt.Sprintf("Original description (for context only): %s\n\n", mode.PriorDescription)
		}
		if kind == content.KindHTML {
			return fmt.Sprintf(htmlModifyTemplate, mode.PriorOutput, priorDesc, description)
		}
		return fmt.Sprintf(svgModifyTemplate, mode.PriorOutput, priorDesc, description)
	default:
		if kind == content.KindHTML {
			return fmt.Sprintf(htmlCreateTemplate, description)
		}
		return fmt.Sprintf(svgCreateTemplate, description)
	}
}
