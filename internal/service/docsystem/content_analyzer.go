package docsystem

import (
	"regexp"
	"strings"

	docsysSvc "drivemirror/internal/domain/services/docsystem"
)

var (
	fencePattern     = regexp.MustCompile("(?s)```.*?```")
	imagePattern     = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	linkPattern      = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	tableRulePattern = regexp.MustCompile(`^\|?\s*:?-{3,}:?\s*(\|\s*:?-{3,}:?\s*)*\|?$`)
	listPattern      = regexp.MustCompile(`^(?:[-*+]|\d+[.)])\s+`)
	emphasisReplacer = strings.NewReplacer("**", "", "__", "", "~~", "", "`", "", "*", "", "|", " ")
)

type contentAnalyzer struct{}

// NewContentAnalyzer creates the markdown analyzer used when storing rich content
func NewContentAnalyzer() docsysSvc.ContentAnalyzer {
	return contentAnalyzer{}
}

func (a contentAnalyzer) CountWords(markdown string) int {
	return len(strings.Fields(a.PlainText(markdown)))
}

func (contentAnalyzer) PlainText(markdown string) string {
	text := fencePattern.ReplaceAllString(markdown, " ")
	text = imagePattern.ReplaceAllString(text, " ")
	text = linkPattern.ReplaceAllString(text, "$1")

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || line == "---" || line == "***" || tableRulePattern.MatchString(line) {
			continue
		}
		line = strings.TrimLeft(line, "#> ")
		line = listPattern.ReplaceAllString(line, "")
		line = emphasisReplacer.Replace(line)
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, " ")
}
