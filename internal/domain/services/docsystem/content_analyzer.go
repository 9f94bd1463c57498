package docsystem

// ContentAnalyzer derives metadata from converted markdown.
type ContentAnalyzer interface {
	// CountWords counts the words a reader sees. Image references, link
	// targets and table rules do not count.
	CountWords(markdown string) int

	// PlainText strips markdown syntax and returns the visible text.
	PlainText(markdown string) string
}
