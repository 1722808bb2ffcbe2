// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package storm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/pdiddy/article-engine/pkg/types"
)

// ErrEmptyOutline is returned when the outline model produces no usable headings.
var ErrEmptyOutline = errors.New("outline has no sections")

// maxConversationWords caps the transcript given to the outline model.
const maxConversationWords = 5000

// nonContentSections are dropped from generated outlines; citations are
// rendered inline instead.
var nonContentSections = map[string]bool{
	"references":     true,
	"external links": true,
	"see also":       true,
	"notes":          true,
	"bibliography":   true,
	"sources":        true,
}

// generateOutline drafts an outline from the topic, then refines it with the
// research conversations. It returns both so the draft can be kept as an artifact.
func (r *Runner) generateOutline(ctx context.Context, topic string, convs []types.Conversation) (direct, refined types.Outline, err error) {
	prompt, err := render(directOutlineTmpl, struct{ Topic string }{topic})
	if err != nil {
		return direct, refined, fmt.Errorf("rendering outline prompt: %w", err)
	}
	out, err := r.lms.OutlineGen.Complete(ctx, "", prompt)
	if err != nil {
		return direct, refined, fmt.Errorf("drafting outline: %w", err)
	}
	direct = parseOutline(topic, out.Text)

	prompt, err = render(refineOutlineTmpl, struct {
		Topic        string
		Conversation string
		Outline      string
	}{topic, conversationTranscript(convs, maxConversationWords), direct.Markdown()})
	if err != nil {
		return direct, refined, fmt.Errorf("rendering refine prompt: %w", err)
	}
	out, err = r.lms.OutlineGen.Complete(ctx, "", prompt)
	if err != nil {
		return direct, refined, fmt.Errorf("refining outline: %w", err)
	}
	refined = parseOutline(topic, out.Text)

	if len(refined.Sections) == 0 {
		refined = direct
	}
	if len(refined.Sections) == 0 {
		return direct, refined, ErrEmptyOutline
	}
	return direct, refined, nil
}

// conversationTranscript flattens the conversations into writer/expert lines,
// truncated to maxWords words.
func conversationTranscript(convs []types.Conversation, maxWords int) string {
	var lines []string
	for _, c := range convs {
		for _, t := range c.Turns {
			lines = append(lines, "Wikipedia Writer: "+t.Question)
			lines = append(lines, "Expert: "+t.Answer)
		}
	}
	return limitWords(strings.Join(lines, "\n"), maxWords)
}

// limitWords keeps the first n whitespace-separated words of s, cutting
// right after the nth word so the original separators survive.
func limitWords(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	inWord := false
	for i, r := range s {
		if unicode.IsSpace(r) {
			if inWord && count == n {
				return s[:i]
			}
			inWord = false
			continue
		}
		if !inWord {
			inWord = true
			count++
		}
	}
	return s
}

// parseOutline builds an outline tree from Markdown headings. The shallowest
// heading depth present becomes level 1; non-heading lines are ignored, and
// a heading that repeats the topic is dropped.
func parseOutline(topic, text string) types.Outline {
	type heading struct {
		depth int
		title string
	}

	var hs []heading
	minDepth := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "#") {
			continue
		}
		depth := len(line) - len(strings.TrimLeft(line, "#"))
		title := strings.TrimSpace(strings.Trim(strings.TrimSpace(line[depth:]), `"`))
		if title == "" || strings.EqualFold(title, strings.TrimSpace(topic)) {
			continue
		}
		hs = append(hs, heading{depth: depth, title: title})
		if minDepth == 0 || depth < minDepth {
			minDepth = depth
		}
	}

	outline := types.Outline{Topic: topic}

	// stack holds pointers to the open node at each level.
	var stack []*types.OutlineNode
	skipBelow := 0
	for _, h := range hs {
		level := h.depth - minDepth + 1
		if skipBelow > 0 && level > skipBelow {
			continue
		}
		skipBelow = 0
		if nonContentSections[strings.ToLower(h.title)] {
			skipBelow = level
			continue
		}

		if len(stack) >= level {
			stack = stack[:level-1]
		}
		// Clamp jumps such as # → ### to the next level.
		level = len(stack) + 1
		node := types.OutlineNode{Title: h.title, Level: level}

		if level == 1 {
			outline.Sections = append(outline.Sections, node)
			stack = append(stack, &outline.Sections[len(outline.Sections)-1])
			continue
		}
		parent := stack[len(stack)-1]
		parent.Children = append(parent.Children, node)
		stack = append(stack, &parent.Children[len(parent.Children)-1])
	}
	return outline
}
