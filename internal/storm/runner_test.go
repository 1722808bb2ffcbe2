// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package storm

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/article-engine/internal/lm"
	"github.com/pdiddy/article-engine/pkg/types"
)

// --- fakes ---

// funcModel answers every prompt through fn.
type funcModel struct {
	name string
	fn   func(prompt string) (string, error)
}

func (f *funcModel) Name() string { return f.name }

func (f *funcModel) Complete(_ context.Context, _, prompt string) (lm.Completion, error) {
	text, err := f.fn(prompt)
	if err != nil {
		return lm.Completion{}, err
	}
	return lm.Completion{Text: text, PromptTokens: int64(len(prompt)), CompletionTokens: int64(len(text))}, nil
}

type fakeRetriever struct {
	mu      sync.Mutex
	queries []string
	err     error
}

func (f *fakeRetriever) Retrieve(_ context.Context, queries []string, _ []string) ([]types.Snippet, error) {
	f.mu.Lock()
	f.queries = append(f.queries, queries...)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return []types.Snippet{
		{URL: "https://qubits.example", Title: "Qubits", Excerpts: []string{"A qubit is a two-state quantum system."}},
		{URL: "https://apps.example", Title: "Applications", Excerpts: []string{"Quantum applications include cryptography and simulation."}},
	}, nil
}

func (f *fakeRetriever) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func questionAsker() *funcModel {
	return &funcModel{name: "small", fn: func(p string) (string, error) {
		switch {
		case strings.Contains(p, "select a group of Wikipedia editors"):
			return "1. Physicist: focuses on theory\n2. Engineer: focuses on hardware\n3. Historian: focuses on history\n4. Extra: ignored", nil
		case strings.Contains(p, "Conversation history:\nN/A"):
			return "What is a qubit?", nil
		default:
			return endOfQuestions, nil
		}
	}}
}

func convSimulator() *funcModel {
	return &funcModel{name: "small", fn: func(p string) (string, error) {
		if strings.Contains(p, "Google search") {
			return "- qubit basics\n- quantum applications\n- extra one\n- dropped", nil
		}
		return "A qubit is a two-state system [1].", nil
	}}
}

func outlineGen() *funcModel {
	return &funcModel{name: "large", fn: func(string) (string, error) {
		return "# Quantum Computing\n# Overview\n## Qubits\n# Applications\n# References\n## Books", nil
	}}
}

func articleGen() *funcModel {
	return &funcModel{name: "large", fn: func(p string) (string, error) {
		rest := p[strings.Index(p, "The section you need to write:\n")+len("The section you need to write:\n"):]
		heading := strings.SplitN(rest, "\n", 2)[0]
		return heading + "\n\nText about " + strings.TrimLeft(heading, "# ") + " [1][2][99].\n\n# References\n[1] somewhere", nil
	}}
}

func polishGen() *funcModel {
	return &funcModel{name: "large", fn: func(string) (string, error) {
		return "# Lead\nQuantum computing is ... [1][7].", nil
	}}
}

func testConfigs() lm.Configs {
	return lm.NewConfigs(convSimulator(), questionAsker(), outlineGen(), articleGen(), polishGen())
}

func newTestRunner(t *testing.T, lms lm.Configs, rm Retriever) (*Runner, string) {
	t.Helper()
	out := t.TempDir()
	r, err := New(types.RunnerConfig{OutputDir: out, MaxThreadNum: 2}, lms, rm, nil)
	require.NoError(t, err)
	return r, out
}

// --- Runner ---

func TestRunAllStages(t *testing.T) {
	rm := &fakeRetriever{}
	r, out := newTestRunner(t, testConfigs(), rm)

	require.NoError(t, r.Run(context.Background(), "  Quantum Computing ", types.AllStages()))

	article := r.Article()
	require.NotEmpty(t, article)
	assert.True(t, strings.HasPrefix(article, "Quantum computing is ... [1]."), "lead section comes first: %q", article)
	assert.NotContains(t, article, "[7]")
	assert.NotContains(t, article, "[99]")
	assert.NotContains(t, article, "# Lead")
	assert.NotContains(t, article, "# References")
	assert.Contains(t, article, "# Overview")
	assert.Contains(t, article, "# Applications")
	assert.Less(t, strings.Index(article, "# Overview"), strings.Index(article, "# Applications"))

	// Four conversations (basic fact writer + three personas), one turn each,
	// three queries per turn.
	assert.Equal(t, 12, rm.count())

	dir := filepath.Join(out, "Quantum_Computing")
	for _, f := range []string{conversationLogFile, sourcesFile, directOutlineFile, outlineFile, draftFile, polishedFile} {
		assert.FileExists(t, filepath.Join(dir, f))
	}

	outline, err := readText(filepath.Join(dir, outlineFile))
	require.NoError(t, err)
	assert.Equal(t, "# Overview\n## Qubits\n# Applications", outline)

	var doc sourcesDoc
	require.NoError(t, readYAML(filepath.Join(dir, sourcesFile), &doc))
	require.Len(t, doc.Sources, 2)
	assert.Equal(t, "https://qubits.example", doc.Sources[0].URL)
}

func TestPostRunWritesRecords(t *testing.T) {
	r, out := newTestRunner(t, testConfigs(), &fakeRetriever{})

	assert.ErrorIs(t, r.PostRun(), ErrNoRun)

	require.NoError(t, r.Run(context.Background(), "Quantum Computing", types.AllStages()))
	require.NoError(t, r.PostRun())
	r.Summary()

	dir := filepath.Join(out, "Quantum_Computing")
	var rc runConfig
	require.NoError(t, readYAML(filepath.Join(dir, runConfigFile), &rc))
	assert.Equal(t, "Quantum Computing", rc.Topic)
	assert.NotEmpty(t, rc.RunID)
	assert.Len(t, rc.Timings, 4)
	assert.Equal(t, types.DefaultRetrieveTopK, rc.Runner.RetrieveTopK)
	assert.Equal(t, 2, rc.LM[lm.RoleOutlineGen].Calls)
	assert.Equal(t, 1, rc.LM[lm.RoleArticlePolish].Calls)

	f, err := os.Open(filepath.Join(dir, callHistoryFile))
	require.NoError(t, err)
	defer f.Close()
	lines := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines++
	}
	total := 0
	for _, u := range rc.LM {
		total += u.Calls
	}
	assert.Equal(t, total, lines)
}

func TestRunReusesArtifactsForDisabledStages(t *testing.T) {
	r, _ := newTestRunner(t, testConfigs(), &fakeRetriever{})
	require.NoError(t, r.Run(context.Background(), "Quantum Computing", types.AllStages()))

	// A fresh runner over the same output directory: polish only.
	rm := &fakeRetriever{}
	lms := lm.NewConfigs(convSimulator(), questionAsker(), outlineGen(), articleGen(),
		&funcModel{name: "large", fn: func(string) (string, error) { return "A new lead [2].", nil }})
	r2, err := New(r.cfg, lms, rm, nil)
	require.NoError(t, err)

	require.NoError(t, r2.Run(context.Background(), "Quantum Computing", types.StageFlags{Polish: true}))
	assert.True(t, strings.HasPrefix(r2.Article(), "A new lead [2]."))
	assert.Contains(t, r2.Article(), "# Overview")
	assert.Zero(t, rm.count(), "research is not repeated")
	assert.Zero(t, lms.ArticleGen.Usage().Calls, "draft is read from disk")
}

func TestRunMissingArtifact(t *testing.T) {
	r, _ := newTestRunner(t, testConfigs(), &fakeRetriever{})

	err := r.Run(context.Background(), "Unseen Topic", types.StageFlags{Outline: true})
	require.ErrorIs(t, err, ErrMissingArtifact)
	assert.Contains(t, err.Error(), "outline stage")
	assert.Empty(t, r.Article())
}

func TestRunDraftOnlyArticleFallsBackToDraft(t *testing.T) {
	r, _ := newTestRunner(t, testConfigs(), &fakeRetriever{})
	flags := types.AllStages()
	flags.Polish = false

	require.NoError(t, r.Run(context.Background(), "Quantum Computing", flags))
	assert.True(t, strings.HasPrefix(r.Article(), "# Overview"))
}

func TestRunFailures(t *testing.T) {
	t.Run("retrieval finds nothing", func(t *testing.T) {
		r, _ := newTestRunner(t, testConfigs(), &fakeRetriever{err: errors.New("search down")})
		err := r.Run(context.Background(), "Quantum Computing", types.AllStages())
		require.ErrorIs(t, err, ErrNoSources)
		assert.Empty(t, r.Article())
	})

	t.Run("model error aborts the run", func(t *testing.T) {
		lms := lm.NewConfigs(convSimulator(), questionAsker(), outlineGen(),
			&funcModel{name: "large", fn: func(string) (string, error) { return "", errors.New("rate limited") }},
			polishGen())
		r, _ := newTestRunner(t, lms, &fakeRetriever{})
		err := r.Run(context.Background(), "Quantum Computing", types.AllStages())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "draft stage")
		assert.Contains(t, err.Error(), "rate limited")
		assert.Empty(t, r.Article())
	})

	t.Run("panicking section writer fails the run", func(t *testing.T) {
		lms := lm.NewConfigs(convSimulator(), questionAsker(), outlineGen(),
			&funcModel{name: "large", fn: func(string) (string, error) {
				var m map[string]int
				m["x"]++
				return "", nil
			}},
			polishGen())
		r, _ := newTestRunner(t, lms, &fakeRetriever{})
		err := r.Run(context.Background(), "Quantum Computing", types.AllStages())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "worker panic")
		assert.Empty(t, r.Article())
	})

	t.Run("panicking conversation fails the run", func(t *testing.T) {
		lms := lm.NewConfigs(
			&funcModel{name: "small", fn: func(string) (string, error) { panic("simulator crashed") }},
			questionAsker(), outlineGen(), articleGen(), polishGen())
		r, _ := newTestRunner(t, lms, &fakeRetriever{})
		err := r.Run(context.Background(), "Quantum Computing", types.AllStages())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "research stage")
		assert.Contains(t, err.Error(), "simulator crashed")
	})

	t.Run("empty topic", func(t *testing.T) {
		r, _ := newTestRunner(t, testConfigs(), &fakeRetriever{})
		assert.Error(t, r.Run(context.Background(), "   ", types.AllStages()))
	})

	t.Run("outline without headings", func(t *testing.T) {
		lms := lm.NewConfigs(convSimulator(), questionAsker(),
			&funcModel{name: "large", fn: func(string) (string, error) { return "no headings here", nil }},
			articleGen(), polishGen())
		r, _ := newTestRunner(t, lms, &fakeRetriever{})
		err := r.Run(context.Background(), "Quantum Computing", types.AllStages())
		assert.ErrorIs(t, err, ErrEmptyOutline)
	})
}

func TestNewValidates(t *testing.T) {
	_, err := New(types.RunnerConfig{}, lm.Configs{}, &fakeRetriever{}, nil)
	assert.Error(t, err)

	_, err = New(types.RunnerConfig{}, testConfigs(), nil, nil)
	assert.Error(t, err)
}

func TestGettersReportLatestRun(t *testing.T) {
	r, out := newTestRunner(t, testConfigs(), &fakeRetriever{})

	require.NoError(t, r.Run(context.Background(), "Quantum Computing", types.AllStages()))
	first := r.Article()

	require.NoError(t, r.Run(context.Background(), "Quantum Sensing", types.AllStages()))
	require.NoError(t, r.PostRun())

	assert.Equal(t, first, r.Article(), "same scripted output for both topics")
	_, err := os.Stat(filepath.Join(out, "Quantum_Sensing", runConfigFile))
	assert.NoError(t, err, "PostRun records the latest run")
	_, err = os.Stat(filepath.Join(out, "Quantum_Computing", runConfigFile))
	assert.True(t, os.IsNotExist(err), "earlier run is no longer reported")
}
