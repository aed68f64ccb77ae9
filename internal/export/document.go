// Package export renders printable wine lists.
package export

// Document is a printable list: a title block followed by section headings and
// item lines in grouped order.
type Document struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Total    string `json:"total"`
	Lines    []Line `json:"lines"`
}

// Line is either a section heading (Heading set) or an item with a main text and
// a details line.
type Line struct {
	Level   int    `json:"level"`
	Heading string `json:"heading,omitempty"`
	Text    string `json:"text,omitempty"`
	Details string `json:"details,omitempty"`
}

// IsHeading reports whether l opens a section.
func (l Line) IsHeading() bool {
	return l.Heading != ""
}
