package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DocumentStyle is the target genre the model should produce
type DocumentStyle string

const (
	StyleArticle      DocumentStyle = "article"
	StyleTranscript   DocumentStyle = "transcript"
	StyleMeetingNotes DocumentStyle = "meeting_notes"
	StyleAcademic     DocumentStyle = "academic"
)

var documentStyles = []struct {
	style DocumentStyle
	name  string
}{
	{StyleArticle, "Article"},
	{StyleTranscript, "Transcript"},
	{StyleMeetingNotes, "Meeting Notes"},
	{StyleAcademic, "Academic"},
}

// DocumentStyles returns every style in display order
func DocumentStyles() []DocumentStyle {
	out := make([]DocumentStyle, len(documentStyles))
	for i, s := range documentStyles {
		out[i] = s.style
	}
	return out
}

// DisplayName returns the human label, e.g. "Meeting Notes"
func (s DocumentStyle) DisplayName() string {
	for _, ds := range documentStyles {
		if ds.style == s {
			return ds.name
		}
	}
	return string(s)
}

func (s DocumentStyle) Valid() bool {
	for _, ds := range documentStyles {
		if ds.style == s {
			return true
		}
	}
	return false
}

// ParseDocumentStyle accepts either the wire token or the display name.
// An empty value yields the Article default.
func ParseDocumentStyle(v string) (DocumentStyle, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return StyleArticle, nil
	}
	for _, ds := range documentStyles {
		if v == string(ds.style) || strings.EqualFold(v, ds.name) {
			return ds.style, nil
		}
	}
	return "", fmt.Errorf("unknown document style %q", v)
}

func (s *DocumentStyle) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseDocumentStyle(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// FormattingConfig is the per-request set of formatting toggles
type FormattingConfig struct {
	Paragraphs         bool          `json:"add_paragraphs"`
	Headings           bool          `json:"add_headings"`
	FixGrammar         bool          `json:"fix_grammar"`
	HighlightKeyPoints bool          `json:"highlight_key_points"`
	Style              DocumentStyle `json:"format_style"`
}

// DefaultFormatting mirrors the upload form defaults: every toggle on, Article style.
func DefaultFormatting() FormattingConfig {
	return FormattingConfig{
		Paragraphs:         true,
		Headings:           true,
		FixGrammar:         true,
		HighlightKeyPoints: true,
		Style:              StyleArticle,
	}
}
