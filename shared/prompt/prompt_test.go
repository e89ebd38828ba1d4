package prompt

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"transcript-stack/internal/models"
)

func allFormattingConfigs() []models.FormattingConfig {
	var out []models.FormattingConfig
	for mask := 0; mask < 16; mask++ {
		for _, style := range models.DocumentStyles() {
			out = append(out, models.FormattingConfig{
				Paragraphs:         mask&1 != 0,
				Headings:           mask&2 != 0,
				FixGrammar:         mask&4 != 0,
				HighlightKeyPoints: mask&8 != 0,
				Style:              style,
			})
		}
	}
	return out
}

func TestComposeFormattingDeterministic(t *testing.T) {
	for _, cfg := range allFormattingConfigs() {
		first := ComposeFormatting("hello there", cfg)
		second := ComposeFormatting("hello there", cfg)
		if first.Instructions() != second.Instructions() {
			t.Fatalf("prompt for %+v differs between calls", cfg)
		}
		if first.User != "hello there" {
			t.Errorf("User = %q, want the unmodified text", first.User)
		}
	}
}

func TestComposeFormattingDistinctConfigs(t *testing.T) {
	seen := make(map[string]models.FormattingConfig)
	for _, cfg := range allFormattingConfigs() {
		p := ComposeFormatting("", cfg).Instructions()
		if prev, ok := seen[p]; ok {
			t.Errorf("configs %+v and %+v produce the same prompt", prev, cfg)
		}
		seen[p] = cfg
	}
}

func TestComposeFormattingHeadings(t *testing.T) {
	cfg := models.DefaultFormatting()
	cfg.Headings = false

	p := ComposeFormatting("text", cfg)
	if !contains(p.System, headingsOff) {
		t.Errorf("headings disabled: missing negative instruction in %q", p.Instructions())
	}
	if contains(p.System, headingsOn) {
		t.Error("headings disabled: positive heading instruction still present")
	}

	cfg.Headings = true
	p = ComposeFormatting("text", cfg)
	if !contains(p.System, headingsOn) || contains(p.System, headingsOff) {
		t.Errorf("headings enabled: unexpected instructions %q", p.Instructions())
	}
}

func TestComposeFormattingStyle(t *testing.T) {
	for _, style := range models.DocumentStyles() {
		cfg := models.DefaultFormatting()
		cfg.Style = style
		p := ComposeFormatting("", cfg)

		want := styleInstructions[style]
		if !contains(p.System, want[0]) || !contains(p.System, want[1]) {
			t.Errorf("style %s: missing style sentences", style)
		}
		for other, lines := range styleInstructions {
			if other != style && contains(p.System, lines[0]) {
				t.Errorf("style %s: contains sentences of %s", style, other)
			}
		}
	}

	// unknown style behaves like the default
	got := ComposeFormatting("", models.FormattingConfig{Style: "poetry"})
	want := ComposeFormatting("", models.FormattingConfig{Style: models.StyleArticle})
	if !reflect.DeepEqual(got, want) {
		t.Error("unknown style should fall back to Article")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     models.RewriteConfig
		wantErr bool
	}{
		{"empty", models.NewRewriteConfig(), false},
		{"shorter", models.NewRewriteConfig(models.TagShorter), false},
		{"longer", models.NewRewriteConfig(models.TagLonger, models.TagProfessional), false},
		{"both", models.NewRewriteConfig(models.TagShorter, models.TagLonger), true},
		{"both with others", models.NewRewriteConfig(models.TagClearSimple, models.TagShorter, models.TagLonger), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("error %T is not a *ValidationError", err)
			}
			if !errors.Is(err, ErrConflictingLength) {
				t.Errorf("error %v does not wrap ErrConflictingLength", err)
			}
		})
	}
}

func TestComposeRewrite(t *testing.T) {
	rc := models.NewRewriteConfig(models.TagLonger, models.TagClearSimple, models.TagYouTubeScript)
	p, err := ComposeRewrite("body", rc)
	if err != nil {
		t.Fatalf("ComposeRewrite() error: %v", err)
	}

	if !strings.HasPrefix(p.System[0], "Never use any of the following words or phrases:") {
		t.Errorf("first line = %q, want banned phrase instruction", p.System[0])
	}
	for _, phrase := range BannedPhrases {
		if !strings.Contains(p.System[0], phrase) {
			t.Errorf("banned phrase %q missing", phrase)
		}
	}

	// tag sentences appear in enumeration order regardless of input order
	joined := p.Instructions()
	clearIdx := strings.Index(joined, rewriteInstructions[models.TagClearSimple][0])
	script := strings.Index(joined, rewriteInstructions[models.TagYouTubeScript][0])
	longer := strings.Index(joined, rewriteInstructions[models.TagLonger][0])
	if clearIdx < 0 || script < 0 || longer < 0 {
		t.Fatalf("missing tag instructions in %q", joined)
	}
	if !(clearIdx < script && script < longer) {
		t.Errorf("tag instructions out of order: %d %d %d", clearIdx, script, longer)
	}
	if strings.Contains(joined, rewriteInstructions[models.TagProfessional][0]) {
		t.Error("unselected tag instructions present")
	}
	if p.User != "body" {
		t.Errorf("User = %q", p.User)
	}
}

func TestComposeRewriteRejectsConflict(t *testing.T) {
	_, err := ComposeRewrite("body", models.NewRewriteConfig(models.TagShorter, models.TagLonger))
	if !errors.Is(err, ErrConflictingLength) {
		t.Fatalf("ComposeRewrite() error = %v, want ErrConflictingLength", err)
	}
}

func TestRewriteInstructionSizes(t *testing.T) {
	for _, tag := range models.RewriteTags() {
		n := len(rewriteInstructions[tag])
		if n < 1 || n > 4 {
			t.Errorf("tag %s has %d sentences", tag, n)
		}
	}
}

func TestApplyBlacklistDoesNotMutateInput(t *testing.T) {
	in := []string{"a", "b"}
	out := ApplyBlacklist(in)
	if len(out) != 4 || out[2] != "a" || out[3] != "b" {
		t.Errorf("ApplyBlacklist() = %q", out)
	}
	if in[0] != "a" || len(in) != 2 {
		t.Error("input was modified")
	}
}

func contains(lines []string, s string) bool {
	for _, l := range lines {
		if l == s {
			return true
		}
	}
	return false
}
