package prompt

import (
	"strings"
	"testing"

	"github.com/everstacklabs/inkgen/internal/content"
)

func TestModeFor(t *testing.T) {
	tests := []struct {
		name        string
		priorOutput string
		priorDesc   string
		want        ModeKind
	}{
		{"no prior fields", "", "", ModeCreate},
		{"prior output present", "<svg/>", "", ModeModify},
		{"prior output and description", "<svg/>", "a cat", ModeModify},
		{"prior description alone is create", "", "a cat", ModeCreate},
		{"whitespace prior output is create", "   \n", "", ModeCreate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ModeFor(tt.priorOutput, tt.priorDesc); got.Kind != tt.want {
				t.Errorf("got mode %v, want %v", got.Kind, tt.want)
			}
		})
	}
}

func TestBuildDeterministic(t *testing.T) {
	modes := []Mode{Create(), Modify("<svg><rect/></svg>", "a red square")}
	kinds := []content.Kind{content.KindSVG, content.KindHTML}

	for _, kind := range kinds {
		for _, mode := range modes {
			a := Build(kind, mode, "a bouncing ball")
			b := Build(kind, mode, "a bouncing ball")
			if a != b {
				t.Errorf("Build not deterministic for kind=%s mode=%v", kind, mode.Kind)
			}
		}
	}
}

func TestBuildVariesByKindAndMode(t *testing.T) {
	desc := "a bouncing ball"
	prior := "<svg><circle/></svg>"

	svgCreate := Build(content.KindSVG, Create(), desc)
	svgModify := Build(content.KindSVG, Modify(prior, ""), desc)
	htmlCreate := Build(content.KindHTML, Create(), desc)
	htmlModify := Build(content.KindHTML, Modify(prior, ""), desc)

	all := map[string]string{
		"svg create":  svgCreate,
		"svg modify":  svgModify,
		"html create": htmlCreate,
		"html modify": htmlModify,
	}
	seen := make(map[string]string)
	for name, p := range all {
		if other, dup := seen[p]; dup {
			t.Errorf("%s and %s produced identical instructions", name, other)
		}
		seen[p] = name
	}
}

func TestBuildContent(t *testing.T) {
	desc := "a spinning star"

	got := Build(content.KindSVG, Create(), desc)
	if !strings.Contains(got, desc) {
		t.Error("create instruction missing the description")
	}
	if !strings.Contains(got, "no markdown code fences") {
		t.Error("instruction must demand raw markup without fences")
	}
	if !strings.Contains(got, "self-contained") {
		t.Error("instruction must demand a self-contained artifact")
	}
}

func TestBuildModifyCarriesPriorArtifact(t *testing.T) {
	prior := "<svg><circle r=\"3\"/></svg>"
	got := Build(content.KindSVG, Modify(prior, "a small circle"), "make it red")

	if !strings.Contains(got, prior) {
		t.Error("modify instruction missing prior output")
	}
	if !strings.Contains(got, "for context only") {
		t.Error("prior description must be marked as context, not an instruction")
	}
	if !strings.Contains(got, "make it red") {
		t.Error("modify instruction missing the new description")
	}
	if !strings.Contains(got, "Keep the original") {
		t.Error("modify instruction must ask to preserve structure and style")
	}
}

func TestBuildModifyWithoutPriorDescription(t *testing.T) {
	got := Build(content.KindHTML, Modify("<html></html>", ""), "add a title")
	if strings.Contains(got, "for context only") {
		t.Error("empty prior description should not add a context block")
	}
}
