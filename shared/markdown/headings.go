package markdown

import (
	"regexp"
	"strings"
)

// TargetHeading replaces level-1 and level-2 heading markers
const TargetHeading = "###"

var reTopHeading = regexp.MustCompile(`^#{1,2}(\s|$)`)

// NormalizeHeadings rewrites every "# " and "## " line to a level-3 heading.
// Deeper headings, hashtags and all other lines are left untouched.
func NormalizeHeadings(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		loc := reTopHeading.FindStringIndex(line)
		if loc == nil {
			continue
		}
		marker := strings.TrimRight(line[:loc[1]], " \t\r\n")
		lines[i] = TargetHeading + line[len(marker):]
	}
	return strings.Join(lines, "\n")
}
