// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package storm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/article-engine/pkg/types"
)

// ErrEmptyArticle is returned when no section produced any text.
var ErrEmptyArticle = errors.New("article has no content")

// maxDraftWordsForLead caps the draft given to the lead-section writer.
const maxDraftWordsForLead = 4000

// citationPattern matches inline citations such as [3].
var citationPattern = regexp.MustCompile(`\[(\d+)\]`)

// draftArticle writes every top-level section concurrently, grounded on the
// excerpts that best match the section's headings, and joins them in
// outline order.
func (r *Runner) draftArticle(ctx context.Context, topic string, outline types.Outline, sources []types.Snippet) (string, error) {
	table, err := newInfoTable(ctx, sources)
	if err != nil {
		return "", err
	}
	defer table.Close()

	sections := make([]string, len(outline.Sections))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.MaxThreadNum)
	for i, sec := range outline.Sections {
		i, sec := i, sec
		g.Go(func() (err error) {
			defer recoverWorker(&err)
			text, err := r.writeSection(gctx, topic, sec, table, len(sources))
			if err != nil {
				return fmt.Errorf("section %q: %w", sec.Title, err)
			}
			sections[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	var parts []string
	for _, s := range sections {
		if s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return "", ErrEmptyArticle
	}
	return strings.Join(parts, "\n\n"), nil
}

// writeSection gathers up to RetrieveTopK excerpts per heading of sec and
// asks the article model for the section text.
func (r *Runner) writeSection(ctx context.Context, topic string, sec types.OutlineNode, table *infoTable, numSources int) (string, error) {
	seen := make(map[string]bool)
	var hits []hit
	for _, h := range sec.Headings() {
		found, err := table.Search(ctx, topic+" "+h, r.cfg.RetrieveTopK)
		if err != nil {
			return "", err
		}
		for _, f := range found {
			if seen[f.Excerpt] {
				continue
			}
			seen[f.Excerpt] = true
			hits = append(hits, f)
		}
	}

	var info strings.Builder
	for _, h := range hits {
		fmt.Fprintf(&info, "[%d]\n%s\n\n", h.Source, h.Excerpt)
	}

	sub := types.Outline{Topic: topic, Sections: []types.OutlineNode{sec}}
	prompt, err := render(sectionTmpl, struct {
		Topic   string
		Info    string
		Outline string
	}{topic, strings.TrimSpace(info.String()), sub.Markdown()})
	if err != nil {
		return "", fmt.Errorf("rendering section prompt: %w", err)
	}

	out, err := r.lms.ArticleGen.Complete(ctx, "", prompt)
	if err != nil {
		return "", err
	}
	return cleanSection(sec.Title, out.Text, numSources), nil
}

// cleanSection makes sure the text opens with the section heading, drops any
// trailing references block the model added, and removes citations that do
// not point at a collected source.
func cleanSection(title, text string, numSources int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	var kept []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			heading := strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			if nonContentSections[strings.ToLower(heading)] {
				break
			}
		}
		kept = append(kept, line)
	}
	text = strings.TrimSpace(strings.Join(kept, "\n"))

	if !strings.HasPrefix(text, "#") {
		text = "# " + title + "\n\n" + text
	}
	return pruneCitations(text, numSources)
}

// pruneCitations removes [n] markers with n outside 1..numSources.
func pruneCitations(text string, numSources int) string {
	return citationPattern.ReplaceAllStringFunc(text, func(m string) string {
		n, err := strconv.Atoi(m[1 : len(m)-1])
		if err != nil || n < 1 || n > numSources {
			return ""
		}
		return m
	})
}

// polishArticle prepends a lead section summarizing the draft.
func (r *Runner) polishArticle(ctx context.Context, topic, draft string, numSources int) (string, error) {
	prompt, err := render(leadTmpl, struct {
		Topic string
		Draft string
	}{topic, limitWords(draft, maxDraftWordsForLead)})
	if err != nil {
		return "", fmt.Errorf("rendering lead prompt: %w", err)
	}

	out, err := r.lms.ArticlePolish.Complete(ctx, "", prompt)
	if err != nil {
		return "", fmt.Errorf("writing lead section: %w", err)
	}

	var lead []string
	for _, line := range strings.Split(out.Text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		lead = append(lead, line)
	}
	text := strings.TrimSpace(strings.Join(lead, "\n"))
	if text == "" {
		return draft, nil
	}
	return pruneCitations(text, numSources) + "\n\n" + draft, nil
}
