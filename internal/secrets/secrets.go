// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets resolves the two API credentials the service needs at
// startup: the generation API key and the retrieval API key.
//
// Both keys are taken from the environment when both variables are set.
// Otherwise they are read from a TOML secrets file holding the same names:
//
//	OPENAI_API_KEY = "sk-..."
//	YDC_API_KEY    = "..."
package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Key names, shared by the environment and the secrets file.
const (
	GenerationKeyName = "OPENAI_API_KEY"
	RetrievalKeyName  = "YDC_API_KEY"
)

// DefaultFile is the secrets file consulted when the environment is incomplete.
const DefaultFile = "secrets.toml"

// Configuration errors. Both are fatal at startup.
var (
	ErrMissingSource         = errors.New("missing credential source")
	ErrIncompleteCredentials = errors.New("incomplete credentials")
)

// Credentials holds the resolved API keys. Values are never logged.
type Credentials struct {
	GenerationKey string
	RetrievalKey  string
}

// Load resolves credentials from the process environment, falling back to
// the TOML file at path. An empty path uses DefaultFile.
func Load(path string) (Credentials, error) {
	return load(os.LookupEnv, path)
}

func load(lookup func(string) (string, bool), path string) (Credentials, error) {
	if path == "" {
		path = DefaultFile
	}

	genKey, genOK := lookup(GenerationKeyName)
	retKey, retOK := lookup(RetrievalKeyName)

	var creds Credentials
	if genOK && retOK {
		creds = Credentials{GenerationKey: genKey, RetrievalKey: retKey}
	} else {
		fromFile, err := readFile(path)
		if err != nil {
			return Credentials{}, err
		}
		creds = fromFile
	}

	creds.GenerationKey = strings.TrimSpace(creds.GenerationKey)
	creds.RetrievalKey = strings.TrimSpace(creds.RetrievalKey)

	var missing []string
	if creds.GenerationKey == "" {
		missing = append(missing, GenerationKeyName)
	}
	if creds.RetrievalKey == "" {
		missing = append(missing, RetrievalKeyName)
	}
	if len(missing) > 0 {
		return Credentials{}, fmt.Errorf("%w: %s not set", ErrIncompleteCredentials, strings.Join(missing, ", "))
	}
	return creds, nil
}

// readFile parses the TOML secrets file. Key lookup is case-insensitive.
func readFile(path string) (Credentials, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Credentials{}, fmt.Errorf("%w: %s not found and %s/%s not both set",
				ErrMissingSource, path, GenerationKeyName, RetrievalKeyName)
		}
		return Credentials{}, fmt.Errorf("reading secrets file %s: %w", path, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return Credentials{}, fmt.Errorf("parsing secrets file %s: %w", path, err)
	}

	return Credentials{
		GenerationKey: v.GetString(GenerationKeyName),
		RetrievalKey:  v.GetString(RetrievalKeyName),
	}, nil
}

// LoadDotEnv loads a .env file into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}
