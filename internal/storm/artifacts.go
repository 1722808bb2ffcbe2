// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package storm

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/article-engine/internal/lm"
	"github.com/pdiddy/article-engine/pkg/types"
)

// Artifact file names inside a topic directory.
const (
	conversationLogFile = "conversation_log.yaml"
	sourcesFile         = "url_to_info.yaml"
	directOutlineFile   = "direct_gen_outline.md"
	outlineFile         = "storm_gen_outline.md"
	draftFile           = "storm_gen_article.md"
	polishedFile        = "storm_gen_article_polished.md"
	runConfigFile       = "run_config.yaml"
	callHistoryFile     = "llm_call_history.jsonl"
)

// ErrMissingArtifact is returned when a disabled stage's output is needed
// but was never produced for this topic.
var ErrMissingArtifact = errors.New("missing artifact")

// sourcesDoc is the on-disk form of the collected sources. Citation [n]
// refers to Sources[n-1].
type sourcesDoc struct {
	Sources []types.Snippet `yaml:"sources"`
}

// maxDirName is the longest directory name most filesystems accept, in bytes.
const maxDirName = 255

// topicDirName converts a topic into a single path element below the output
// directory. Names made only of dots become "_".
func topicDirName(topic string) string {
	name := strings.TrimSpace(topic)
	name = strings.NewReplacer(" ", "_", "/", "_", "\\", "_").Replace(name)
	if len(name) > maxDirName {
		cut := maxDirName
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut]
	}
	if strings.Trim(name, ".") == "" {
		return "_"
	}
	return name
}

func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, data, 0o644)
}

func readYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrMissingArtifact, path)
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func writeText(path, text string) error {
	return os.WriteFile(path, []byte(text+"\n"), 0o644)
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrMissingArtifact, path)
		}
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// writeCallHistory writes one JSON object per model call.
func writeCallHistory(path string, calls []lm.Call) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, c := range calls {
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("writing call history: %w", err)
		}
	}
	return f.Close()
}
