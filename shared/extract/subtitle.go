package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	errNoCues        = errors.New("no subtitle cues found")
	errMissingHeader = errors.New("missing WEBVTT header")

	reSrtTiming = regexp.MustCompile(`^\d{1,2}:\d{2}:\d{2}[,.]\d{1,3}\s*-->\s*\d{1,2}:\d{2}:\d{2}[,.]\d{1,3}(\s.*)?$`)
	reVttTiming = regexp.MustCompile(`^(\d{2,}:)?\d{2}:\d{2}\.\d{3}\s+-->\s+(\d{2,}:)?\d{2}:\d{2}\.\d{3}(\s.*)?$`)
	reMarkupTag = regexp.MustCompile(`<[^>]*>`)
	reAssTag    = regexp.MustCompile(`\{\\[^}]*\}`)
)

// ParseSRT returns the dialogue of a SubRip document as a single line of text.
//
//	1                               sequence number (optional)
//	00:00:00,000 --> 00:00:01,830   start --> end
//	I'm happy to                    text
//	have you here today.            text
func ParseSRT(content string) (string, error) {
	blocks := splitBlocks(content)
	if len(blocks) == 0 {
		return "", nil
	}

	var cues []string
	for i, block := range blocks {
		lines := block
		if isDigitOnly(lines[0]) {
			lines = lines[1:]
		}
		if len(lines) == 0 {
			return "", fmt.Errorf("cue %d: missing timing line", i+1)
		}
		if !reSrtTiming.MatchString(lines[0]) {
			return "", fmt.Errorf("cue %d: malformed timing line %q", i+1, lines[0])
		}
		if text := cueText(lines[1:]); text != "" {
			cues = append(cues, text)
		}
	}

	if len(cues) == 0 {
		return "", errNoCues
	}
	return strings.Join(cues, " "), nil
}

// ParseVTT returns the dialogue of a WebVTT document as a single line of text.
// NOTE, STYLE and REGION blocks are skipped; cue identifiers and settings are tolerated.
func ParseVTT(content string) (string, error) {
	blocks := splitBlocks(content)
	if len(blocks) == 0 {
		return "", nil
	}
	if !strings.HasPrefix(blocks[0][0], "WEBVTT") {
		return "", errMissingHeader
	}

	var cues []string
	for i, block := range blocks[1:] {
		first := block[0]
		if first == "NOTE" || strings.HasPrefix(first, "NOTE ") || first == "STYLE" || first == "REGION" {
			continue
		}

		lines := block
		if !strings.Contains(first, "-->") {
			lines = lines[1:]
		}
		if len(lines) == 0 {
			return "", fmt.Errorf("cue %d: missing timing line", i+1)
		}
		if !reVttTiming.MatchString(lines[0]) {
			return "", fmt.Errorf("cue %d: malformed timing line %q", i+1, lines[0])
		}
		if text := cueText(lines[1:]); text != "" {
			cues = append(cues, text)
		}
	}

	if len(cues) == 0 {
		return "", errNoCues
	}
	return strings.Join(cues, " "), nil
}

// splitBlocks splits content on blank lines into trimmed, non-empty line groups
func splitBlocks(content string) [][]string {
	content = strings.TrimPrefix(content, "\ufeff")
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	var (
		blocks  [][]string
		current []string
	)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			if len(current) > 0 {
				blocks = append(blocks, current)
				current = nil
			}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		blocks = append(blocks, current)
	}
	return blocks
}

// cueText joins cue lines with single spaces and strips residual markup
func cueText(lines []string) string {
	text := strings.Join(lines, " ")
	text = StripMarkup(text)
	return strings.Join(strings.Fields(text), " ")
}

// StripMarkup removes HTML-style tags and ASS override blocks such as {\an8}
func StripMarkup(s string) string {
	s = reMarkupTag.ReplaceAllString(s, "")
	return reAssTag.ReplaceAllString(s, "")
}

func isDigitOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
