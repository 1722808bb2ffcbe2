// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package storm runs the multi-stage article pipeline: research through
// persona-driven simulated conversations, outline generation, grounded
// section drafting, and polishing with a lead section.
//
// A Runner is constructed once and reused. Each Run writes its artifacts
// under <output_dir>/<topic>/, and a stage that is switched off reads its
// artifact back from there so later stages can still run.
package storm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/article-engine/internal/lm"
	"github.com/pdiddy/article-engine/pkg/types"
)

// Stage names, used in logs and timing reports.
const (
	StageResearch = "research"
	StageOutline  = "outline"
	StageDraft    = "draft"
	StagePolish   = "polish"
)

// ErrNoRun is returned by PostRun when Run has not completed yet.
var ErrNoRun = errors.New("no completed run")

// Retriever fetches web snippets for a batch of queries.
type Retriever interface {
	Retrieve(ctx context.Context, queries []string, exclude []string) ([]types.Snippet, error)
}

// StageTiming records how long one stage took.
type StageTiming struct {
	Stage    string        `yaml:"stage"`
	Duration time.Duration `yaml:"duration"`
}

// runState holds everything produced by the latest Run.
type runState struct {
	id      string
	topic   string
	dir     string
	flags   types.StageFlags
	started time.Time
	timings []StageTiming

	conversations []types.Conversation
	sources       []types.Snippet
	outline       *types.Outline
	draft         string
	polished      string
}

// Runner executes the pipeline. Runs are serialized; the getters report on
// the latest run.
type Runner struct {
	cfg types.RunnerConfig
	lms lm.Configs
	rm  Retriever
	log *slog.Logger

	mu    sync.Mutex
	state *runState
}

// New validates the collaborators and returns a runner. A nil logger discards
// log output.
func New(cfg types.RunnerConfig, lms lm.Configs, rm Retriever, log *slog.Logger) (*Runner, error) {
	if err := lms.Validate(); err != nil {
		return nil, err
	}
	if rm == nil {
		return nil, fmt.Errorf("no retriever configured")
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{
		cfg: cfg.WithDefaults(),
		lms: lms,
		rm:  rm,
		log: log,
	}, nil
}

// Run executes the enabled stages for topic. It blocks until every stage has
// finished or one has failed; on failure the partial state is discarded.
func (r *Runner) Run(ctx context.Context, topic string, flags types.StageFlags) error {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return fmt.Errorf("topic is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	st := &runState{
		id:      uuid.NewString(),
		topic:   topic,
		dir:     filepath.Join(r.cfg.OutputDir, topicDirName(topic)),
		flags:   flags,
		started: time.Now(),
	}
	r.state = nil
	r.lms.Reset()

	if err := os.MkdirAll(st.dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	r.log.Info("run started", "run_id", st.id, "topic", topic, "dir", st.dir)

	stages := []struct {
		name    string
		enabled bool
		run     func(context.Context, *runState) error
	}{
		{StageResearch, flags.Research, r.runResearch},
		{StageOutline, flags.Outline, r.runOutline},
		{StageDraft, flags.Draft, r.runDraft},
		{StagePolish, flags.Polish, r.runPolish},
	}
	for _, s := range stages {
		if !s.enabled {
			continue
		}
		start := time.Now()
		if err := s.run(ctx, st); err != nil {
			return fmt.Errorf("%s stage: %w", s.name, err)
		}
		d := time.Since(start)
		st.timings = append(st.timings, StageTiming{Stage: s.name, Duration: d})
		r.log.Debug("stage finished", "run_id", st.id, "stage", s.name, "duration", d)
	}

	r.state = st
	return nil
}

func (r *Runner) runResearch(ctx context.Context, st *runState) error {
	convs, sources, err := r.research(ctx, st.topic)
	if err != nil {
		return err
	}
	st.conversations, st.sources = convs, sources

	if err := writeYAML(filepath.Join(st.dir, conversationLogFile), convs); err != nil {
		return err
	}
	return writeYAML(filepath.Join(st.dir, sourcesFile), sourcesDoc{Sources: sources})
}

func (r *Runner) runOutline(ctx context.Context, st *runState) error {
	if err := r.loadConversations(st); err != nil {
		return err
	}
	direct, refined, err := r.generateOutline(ctx, st.topic, st.conversations)
	if err != nil {
		return err
	}
	st.outline = &refined

	if err := writeText(filepath.Join(st.dir, directOutlineFile), direct.Markdown()); err != nil {
		return err
	}
	return writeText(filepath.Join(st.dir, outlineFile), refined.Markdown())
}

func (r *Runner) runDraft(ctx context.Context, st *runState) error {
	if err := r.loadSources(st); err != nil {
		return err
	}
	if err := r.loadOutline(st); err != nil {
		return err
	}
	draft, err := r.draftArticle(ctx, st.topic, *st.outline, st.sources)
	if err != nil {
		return err
	}
	st.draft = draft
	return writeText(filepath.Join(st.dir, draftFile), draft)
}

func (r *Runner) runPolish(ctx context.Context, st *runState) error {
	if err := r.loadSources(st); err != nil {
		return err
	}
	if st.draft == "" {
		draft, err := readText(filepath.Join(st.dir, draftFile))
		if err != nil {
			return err
		}
		st.draft = draft
	}
	polished, err := r.polishArticle(ctx, st.topic, st.draft, len(st.sources))
	if err != nil {
		return err
	}
	st.polished = polished
	return writeText(filepath.Join(st.dir, polishedFile), polished)
}

func (r *Runner) loadConversations(st *runState) error {
	if st.conversations != nil {
		return nil
	}
	return readYAML(filepath.Join(st.dir, conversationLogFile), &st.conversations)
}

func (r *Runner) loadSources(st *runState) error {
	if st.sources != nil {
		return nil
	}
	var doc sourcesDoc
	if err := readYAML(filepath.Join(st.dir, sourcesFile), &doc); err != nil {
		return err
	}
	st.sources = doc.Sources
	return nil
}

func (r *Runner) loadOutline(st *runState) error {
	if st.outline != nil {
		return nil
	}
	text, err := readText(filepath.Join(st.dir, outlineFile))
	if err != nil {
		return err
	}
	o := parseOutline(st.topic, text)
	if len(o.Sections) == 0 {
		return ErrEmptyOutline
	}
	st.outline = &o
	return nil
}

// recoverWorker converts a panic in a worker goroutine into *err. errgroup
// does not recover panics itself.
func recoverWorker(err *error) {
	if p := recover(); p != nil {
		*err = fmt.Errorf("worker panic: %v", p)
	}
}

// runConfig is the on-disk record written by PostRun.
type runConfig struct {
	RunID     string              `yaml:"run_id"`
	Topic     string              `yaml:"topic"`
	StartedAt time.Time           `yaml:"started_at"`
	Stages    types.StageFlags    `yaml:"stages"`
	Timings   []StageTiming       `yaml:"timings"`
	Runner    types.RunnerConfig  `yaml:"runner"`
	LM        map[string]lm.Usage `yaml:"lm"`
}

// PostRun records the configuration, timings, and model call history of the
// latest run next to its artifacts.
func (r *Runner) PostRun() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.state
	if st == nil {
		return ErrNoRun
	}

	rc := runConfig{
		RunID:     st.id,
		Topic:     st.topic,
		StartedAt: st.started.UTC(),
		Stages:    st.flags,
		Timings:   st.timings,
		Runner:    r.cfg,
		LM:        make(map[string]lm.Usage),
	}
	var calls []lm.Call
	for _, t := range r.lms.All() {
		rc.LM[t.Role()] = t.Usage()
		calls = append(calls, t.History()...)
	}

	if err := writeYAML(filepath.Join(st.dir, runConfigFile), rc); err != nil {
		return err
	}
	return writeCallHistory(filepath.Join(st.dir, callHistoryFile), calls)
}

// Summary logs stage durations and per-role token usage of the latest run.
func (r *Runner) Summary() {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.state
	if st == nil {
		return
	}

	var total time.Duration
	for _, t := range st.timings {
		r.log.Info("stage summary", "run_id", st.id, "stage", t.Stage, "duration", t.Duration.Round(time.Millisecond))
		total += t.Duration
	}
	for _, t := range r.lms.All() {
		u := t.Usage()
		if u.Calls == 0 {
			continue
		}
		r.log.Info("lm usage", "run_id", st.id, "role", t.Role(), "model", u.Model,
			"calls", u.Calls, "prompt_tokens", u.PromptTokens, "completion_tokens", u.CompletionTokens)
	}
	r.log.Info("run summary", "run_id", st.id, "topic", st.topic,
		"sources", len(st.sources), "total", total.Round(time.Millisecond))
}

// Article returns the polished article of the latest run, or the draft when
// polishing was skipped. It returns "" when neither exists.
func (r *Runner) Article() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == nil {
		return ""
	}
	if r.state.polished != "" {
		return r.state.polished
	}
	return r.state.draft
}
