// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "strings"

// OutlineNode is one heading of an article outline. Level 1 is a top-level
// section (# in Markdown), level 2 a subsection, and so on.
type OutlineNode struct {
	Title    string        `json:"title" yaml:"title"`
	Level    int           `json:"level" yaml:"level"`
	Children []OutlineNode `json:"children,omitempty" yaml:"children,omitempty"`
}

// Outline holds the structure of an article.
type Outline struct {
	// Topic is the article subject, rendered as the document title.
	Topic string `json:"topic" yaml:"topic"`

	// Sections lists the top-level sections in order.
	Sections []OutlineNode `json:"sections" yaml:"sections"`
}

// Markdown renders the outline as nested Markdown headings, starting at #.
func (o Outline) Markdown() string {
	var b strings.Builder
	for _, s := range o.Sections {
		writeNode(&b, s)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeNode(b *strings.Builder, n OutlineNode) {
	b.WriteString(strings.Repeat("#", n.Level))
	b.WriteString(" ")
	b.WriteString(n.Title)
	b.WriteString("\n")
	for _, c := range n.Children {
		writeNode(b, c)
	}
}

// Headings returns the titles of n and all of its descendants, depth first.
func (n OutlineNode) Headings() []string {
	out := []string{n.Title}
	for _, c := range n.Children {
		out = append(out, c.Headings()...)
	}
	return out
}

// ArticleRequest is the body of POST /generate-article.
type ArticleRequest struct {
	Topic string `json:"topic"`
}

// ArticleResponse is the success body of POST /generate-article.
type ArticleResponse struct {
	Article string `json:"article"`
}

// ErrorResponse is the failure body of every endpoint.
type ErrorResponse struct {
	Error string `json:"error"`
}
