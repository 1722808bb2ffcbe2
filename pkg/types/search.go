// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the article-engine pipeline:
// configuration, retrieved snippets, simulated conversations, outlines, and
// the request/response bodies of the HTTP surface.
package types

// Snippet is one piece of retrieved web evidence. The same URL may carry
// several text excerpts.
type Snippet struct {
	// URL identifies the source page and is the deduplication key.
	URL string `json:"url" yaml:"url"`

	// Title is the page title as returned by the retrieval backend.
	Title string `json:"title" yaml:"title"`

	// Description is the page summary, if any.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Excerpts holds the text fragments relevant to the query.
	Excerpts []string `json:"snippets" yaml:"snippets"`
}

// Merge appends the excerpts of o that s does not already contain.
func (s *Snippet) Merge(o Snippet) {
	seen := make(map[string]bool, len(s.Excerpts))
	for _, e := range s.Excerpts {
		seen[e] = true
	}
	for _, e := range o.Excerpts {
		if !seen[e] {
			s.Excerpts = append(s.Excerpts, e)
			seen[e] = true
		}
	}
	if s.Title == "" {
		s.Title = o.Title
	}
	if s.Description == "" {
		s.Description = o.Description
	}
}

// DialogueTurn is one question/answer exchange in a simulated conversation.
type DialogueTurn struct {
	// Question is what the persona-driven writer asked.
	Question string `json:"user_utterance" yaml:"user_utterance"`

	// Answer is the grounded reply from the simulated topic expert.
	Answer string `json:"agent_utterance" yaml:"agent_utterance"`

	// Queries are the search queries issued to answer the question.
	Queries []string `json:"search_queries" yaml:"search_queries"`

	// Results are the snippets the answer was grounded on.
	Results []Snippet `json:"search_results" yaml:"search_results"`
}

// Conversation is the full dialogue driven by one persona.
type Conversation struct {
	Perspective string         `json:"perspective" yaml:"perspective"`
	Turns       []DialogueTurn `json:"dlg_turns" yaml:"dlg_turns"`
}
