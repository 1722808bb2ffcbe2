// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package storm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/article-engine/pkg/types"
)

// ErrNoSources is returned when research finishes without retrieving anything.
var ErrNoSources = errors.New("research found no sources")

const (
	defaultPersona = "Basic fact writer: Basic fact writer focusing on broadly covering the basic facts about the topic."
	endOfQuestions = "Thank you so much for your help!"
	noInfoAnswer   = "Sorry, I cannot find information for this question. Please ask another question."

	// fullHistoryTurns is how many recent turns keep their answers in the
	// writer's prompt; older answers are elided.
	fullHistoryTurns = 4
)

// numberedLine matches "1. text" or "1) text".
var numberedLine = regexp.MustCompile(`^\s*\d+[.)]\s*(.+)$`)

// research generates personas, runs one simulated conversation per persona,
// and collects the retrieved sources in first-seen order.
func (r *Runner) research(ctx context.Context, topic string) ([]types.Conversation, []types.Snippet, error) {
	personas, err := r.generatePersonas(ctx, topic)
	if err != nil {
		return nil, nil, err
	}

	convs := make([]types.Conversation, len(personas))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.MaxThreadNum)
	for i, p := range personas {
		i, p := i, p
		g.Go(func() (err error) {
			defer recoverWorker(&err)
			c, err := r.converse(gctx, topic, p)
			if err != nil {
				return fmt.Errorf("conversation %d: %w", i+1, err)
			}
			convs[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	sources := collectSources(convs)
	if len(sources) == 0 {
		return convs, nil, ErrNoSources
	}
	return convs, sources, nil
}

// generatePersonas asks for up to MaxPerspective editors and puts the basic
// fact writer first.
func (r *Runner) generatePersonas(ctx context.Context, topic string) ([]string, error) {
	prompt, err := render(personaPromptTmpl, struct {
		Topic string
		Max   int
	}{topic, r.cfg.MaxPerspective})
	if err != nil {
		return nil, fmt.Errorf("rendering persona prompt: %w", err)
	}

	out, err := r.lms.QuestionAsker.Complete(ctx, "", prompt)
	if err != nil {
		return nil, fmt.Errorf("generating personas: %w", err)
	}

	personas := []string{defaultPersona}
	for _, line := range strings.Split(out.Text, "\n") {
		m := numberedLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		personas = append(personas, strings.TrimSpace(m[1]))
		if len(personas) > r.cfg.MaxPerspective {
			break
		}
	}
	return personas, nil
}

// converse simulates a writer with the given persona questioning a grounded
// expert for at most MaxConvTurn turns.
func (r *Runner) converse(ctx context.Context, topic, persona string) (types.Conversation, error) {
	conv := types.Conversation{Perspective: persona}

	for turn := 0; turn < r.cfg.MaxConvTurn; turn++ {
		prompt, err := render(askQuestionTmpl, struct {
			Topic   string
			Persona string
			History string
		}{topic, persona, dialogueHistory(conv.Turns)})
		if err != nil {
			return conv, fmt.Errorf("rendering question prompt: %w", err)
		}

		q, err := r.lms.QuestionAsker.Complete(ctx, "", prompt)
		if err != nil {
			return conv, fmt.Errorf("asking question: %w", err)
		}
		question := strings.TrimSpace(q.Text)
		if question == "" || strings.HasPrefix(question, endOfQuestions) {
			break
		}

		dt, err := r.answer(ctx, topic, question)
		if err != nil {
			return conv, err
		}
		conv.Turns = append(conv.Turns, dt)
	}
	return conv, nil
}

// answer turns a question into queries, retrieves, and writes a grounded reply.
func (r *Runner) answer(ctx context.Context, topic, question string) (types.DialogueTurn, error) {
	dt := types.DialogueTurn{Question: question}

	prompt, err := render(queryPromptTmpl, struct {
		Topic    string
		Question string
		Max      int
	}{topic, question, r.cfg.MaxSearchQueriesPerTurn})
	if err != nil {
		return dt, fmt.Errorf("rendering query prompt: %w", err)
	}
	q, err := r.lms.ConvSimulator.Complete(ctx, "", prompt)
	if err != nil {
		return dt, fmt.Errorf("generating queries: %w", err)
	}
	dt.Queries = parseQueries(q.Text, r.cfg.MaxSearchQueriesPerTurn)
	if len(dt.Queries) == 0 {
		dt.Queries = []string{question}
	}

	results, err := r.rm.Retrieve(ctx, dt.Queries, nil)
	if err != nil {
		r.log.Warn("retrieval failed", "question", question, "error", err.Error())
		results = nil
	}
	dt.Results = results

	if len(results) == 0 {
		dt.Answer = noInfoAnswer
		return dt, nil
	}

	prompt, err = render(answerPromptTmpl, struct {
		Topic    string
		Question string
		Info     string
	}{topic, question, formatResults(results)})
	if err != nil {
		return dt, fmt.Errorf("rendering answer prompt: %w", err)
	}
	a, err := r.lms.ConvSimulator.Complete(ctx, "", prompt)
	if err != nil {
		return dt, fmt.Errorf("answering question: %w", err)
	}
	dt.Answer = strings.TrimSpace(a.Text)
	return dt, nil
}

// parseQueries reads "- query" or "1. query" lines, keeping at most limit.
func parseQueries(text string, limit int) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if m := numberedLine.FindStringSubmatch(line); m != nil {
			line = m[1]
		} else {
			line = strings.TrimSpace(strings.TrimLeft(line, "-*"))
		}
		line = strings.Trim(line, `"`)
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == limit {
			break
		}
	}
	return out
}

// dialogueHistory renders prior turns for the writer prompt. Answers older
// than the last fullHistoryTurns turns are elided.
func dialogueHistory(turns []types.DialogueTurn) string {
	if len(turns) == 0 {
		return "N/A"
	}
	var b strings.Builder
	for i, t := range turns {
		fmt.Fprintf(&b, "You: %s\n", t.Question)
		if i >= len(turns)-fullHistoryTurns {
			fmt.Fprintf(&b, "Expert: %s\n", t.Answer)
		} else {
			b.WriteString("Expert: Omit the answer here due to space limit.\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatResults numbers snippets as [1], [2], ... for the answer prompt.
func formatResults(results []types.Snippet) string {
	var b strings.Builder
	for i, s := range results {
		fmt.Fprintf(&b, "[%d]: %s\n", i+1, strings.Join(s.Excerpts, "\n"))
	}
	return strings.TrimRight(b.String(), "\n")
}

// collectSources merges every turn's results by URL, keeping first-seen order.
func collectSources(convs []types.Conversation) []types.Snippet {
	index := make(map[string]int)
	var out []types.Snippet
	for _, c := range convs {
		for _, t := range c.Turns {
			for _, s := range t.Results {
				if i, ok := index[s.URL]; ok {
					out[i].Merge(s)
					continue
				}
				s.Excerpts = append([]string(nil), s.Excerpts...)
				index[s.URL] = len(out)
				out = append(out, s)
			}
		}
	}
	return out
}
