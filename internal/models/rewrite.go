package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RewriteTag is one of the fixed stylistic directives for a rewrite
type RewriteTag uint8

const (
	TagClearSimple RewriteTag = iota
	TagProfessional
	TagStorytelling
	TagYouTubeScript
	TagEducational
	TagBalanced
	TagShorter
	TagLonger

	numRewriteTags
)

var rewriteTagInfo = [numRewriteTags]struct {
	token string
	name  string
}{
	TagClearSimple:   {"clear_simple", "Clear & Simple"},
	TagProfessional:  {"professional", "Professional"},
	TagStorytelling:  {"storytelling", "Storytelling"},
	TagYouTubeScript: {"youtube_script", "YouTube Script"},
	TagEducational:   {"educational", "Educational"},
	TagBalanced:      {"balanced", "Balanced"},
	TagShorter:       {"shorter", "Shorter"},
	TagLonger:        {"longer", "Longer"},
}

// RewriteTags returns all tags in enumeration order
func RewriteTags() []RewriteTag {
	out := make([]RewriteTag, 0, numRewriteTags)
	for t := RewriteTag(0); t < numRewriteTags; t++ {
		out = append(out, t)
	}
	return out
}

func (t RewriteTag) Valid() bool { return t < numRewriteTags }

// Token is the lowercase wire form, e.g. "youtube_script"
func (t RewriteTag) Token() string {
	if !t.Valid() {
		return ""
	}
	return rewriteTagInfo[t].token
}

// DisplayName is the label shown to users, e.g. "YouTube Script"
func (t RewriteTag) DisplayName() string {
	if !t.Valid() {
		return ""
	}
	return rewriteTagInfo[t].name
}

func (t RewriteTag) String() string { return t.DisplayName() }

// ParseRewriteTag maps a wire token back to its tag. Unknown tokens are rejected.
func ParseRewriteTag(token string) (RewriteTag, error) {
	for t := RewriteTag(0); t < numRewriteTags; t++ {
		if rewriteTagInfo[t].token == token {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown rewrite option %q", token)
}

// RewriteConfig is a set of rewrite tags. Iteration is always in enumeration order.
type RewriteConfig uint16

// NewRewriteConfig builds a set from tags; duplicates collapse.
func NewRewriteConfig(tags ...RewriteTag) RewriteConfig {
	var c RewriteConfig
	for _, t := range tags {
		c = c.With(t)
	}
	return c
}

func (c RewriteConfig) With(t RewriteTag) RewriteConfig {
	if !t.Valid() {
		return c
	}
	return c | 1<<t
}

func (c RewriteConfig) Has(t RewriteTag) bool {
	return t.Valid() && c&(1<<t) != 0
}

func (c RewriteConfig) Empty() bool { return c == 0 }

func (c RewriteConfig) Tags() []RewriteTag {
	var out []RewriteTag
	for t := RewriteTag(0); t < numRewriteTags; t++ {
		if c.Has(t) {
			out = append(out, t)
		}
	}
	return out
}

// Tokens returns the wire tokens in enumeration order
func (c RewriteConfig) Tokens() []string {
	tags := c.Tags()
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.Token()
	}
	return out
}

// Encode returns the comma-joined token form used in storage
func (c RewriteConfig) Encode() string {
	return strings.Join(c.Tokens(), ",")
}

// ParseRewriteTokens is the inverse of Tokens
func ParseRewriteTokens(tokens []string) (RewriteConfig, error) {
	var c RewriteConfig
	for _, tok := range tokens {
		t, err := ParseRewriteTag(strings.TrimSpace(tok))
		if err != nil {
			return 0, err
		}
		c = c.With(t)
	}
	return c, nil
}

// DecodeRewriteConfig is the inverse of Encode. An empty string is the empty set.
func DecodeRewriteConfig(s string) (RewriteConfig, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	return ParseRewriteTokens(strings.Split(s, ","))
}

func (c RewriteConfig) MarshalJSON() ([]byte, error) {
	tokens := c.Tokens()
	if tokens == nil {
		tokens = []string{}
	}
	return json.Marshal(tokens)
}

func (c *RewriteConfig) UnmarshalJSON(b []byte) error {
	var tokens []string
	if err := json.Unmarshal(b, &tokens); err != nil {
		return err
	}
	parsed, err := ParseRewriteTokens(tokens)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
