// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package storm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/article-engine/pkg/types"
)

func TestParseQueries(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  []string
	}{
		{"dashes", "- qubit basics\n- quantum gates", 3, []string{"qubit basics", "quantum gates"}},
		{"numbered", "1. qubit basics\n2) quantum gates", 3, []string{"qubit basics", "quantum gates"}},
		{"quoted and blank lines", "- \"qubit\"\n\n-\n* gates", 3, []string{"qubit", "gates"}},
		{"limit", "- a\n- b\n- c", 2, []string{"a", "b"}},
		{"empty", "", 3, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseQueries(tt.text, tt.limit))
		})
	}
}

func TestDialogueHistory(t *testing.T) {
	assert.Equal(t, "N/A", dialogueHistory(nil))

	var turns []types.DialogueTurn
	for _, q := range []string{"q1", "q2", "q3", "q4", "q5"} {
		turns = append(turns, types.DialogueTurn{Question: q, Answer: "a-" + q})
	}
	got := dialogueHistory(turns)
	assert.Contains(t, got, "You: q1\nExpert: Omit the answer here due to space limit.")
	assert.NotContains(t, got, "a-q1")
	assert.Contains(t, got, "You: q2\nExpert: a-q2")
	assert.Contains(t, got, "You: q5\nExpert: a-q5")
}

func TestCollectSources(t *testing.T) {
	convs := []types.Conversation{
		{Turns: []types.DialogueTurn{{Results: []types.Snippet{
			{URL: "https://a", Excerpts: []string{"a1"}},
			{URL: "https://b", Excerpts: []string{"b1"}},
		}}}},
		{Turns: []types.DialogueTurn{{Results: []types.Snippet{
			{URL: "https://a", Title: "A", Excerpts: []string{"a1", "a2"}},
			{URL: "https://c", Excerpts: []string{"c1"}},
		}}}},
	}

	got := collectSources(convs)
	assert.Equal(t, []types.Snippet{
		{URL: "https://a", Title: "A", Excerpts: []string{"a1", "a2"}},
		{URL: "https://b", Excerpts: []string{"b1"}},
		{URL: "https://c", Excerpts: []string{"c1"}},
	}, got)

	// The conversation log keeps its own copy.
	assert.Equal(t, []string{"a1"}, convs[0].Turns[0].Results[0].Excerpts)
}

func TestFormatResults(t *testing.T) {
	got := formatResults([]types.Snippet{
		{Excerpts: []string{"one", "two"}},
		{Excerpts: []string{"three"}},
	})
	assert.Equal(t, "[1]: one\ntwo\n[2]: three", got)
}
