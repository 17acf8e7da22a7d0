// Package config loads installer settings from embedded defaults, an
// optional per-project .codepro.toml and CODEPRO_-prefixed environment
// variables, in that precedence order.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ProjectConfigFile is the per-project override file name
const ProjectConfigFile = ".codepro.toml"

//go:embed embedded/defaults.toml
var defaultConfig []byte

// rawBytesProvider implements koanf provider for raw bytes
type rawBytesProvider struct{ bytes []byte }

func (r *rawBytesProvider) ReadBytes() ([]byte, error) { return r.bytes, nil }
func (r *rawBytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New("not implemented")
}

// Repo describes the source repository the installer fetches from
type Repo struct {
	URL     string `koanf:"url"`
	Branch  string `koanf:"branch"`
	APIHost string `koanf:"api_host"`
}

// Env holds environment-file policy
type Env struct {
	ObsoleteKeys []string `koanf:"obsolete_keys"`
}

// Python holds the settings filtered out when Python support is off
type Python struct {
	Permissions []string `koanf:"permissions"`
	HookMarker  string   `koanf:"hook_marker"`
}

// Settings is the fully resolved installer configuration
type Settings struct {
	Repo   Repo   `koanf:"repo"`
	Env    Env    `koanf:"env"`
	Python Python `koanf:"python"`
}

// Load resolves settings for a run rooted at projectDir
func Load(projectDir string) (*Settings, error) {
	k := koanf.New(".")

	// 1. Embedded defaults
	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Project override if present
	overridePath := filepath.Join(projectDir, ProjectConfigFile)
	if _, err := os.Stat(overridePath); err == nil {
		if err := k.Load(file.Provider(overridePath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", overridePath, err)
		}
	}

	// 3. Environment variables: CODEPRO_REPO_URL -> repo.url
	if err := k.Load(env.Provider("CODEPRO_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "CODEPRO_")), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}

	var settings Settings
	if err := k.Unmarshal("", &settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &settings, nil
}
