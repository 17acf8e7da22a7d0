// Package source resolves logical repository paths to bytes, either from
// the published repository over HTTP or from a local mirror directory.
package source

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/maxritter/codepro/pkg/errors"
	"github.com/maxritter/codepro/pkg/filesystem"
	"github.com/maxritter/codepro/pkg/logging"
	"github.com/maxritter/codepro/pkg/paths"
)

// Config describes where managed files are fetched from. It is immutable
// for the duration of a run.
type Config struct {
	RepoURL      string
	Branch       string
	APIHost      string
	LocalMode    bool
	LocalRepoDir string
}

// Provider resolves logical repository paths. Implementations perform no
// destination writes except through DownloadFile, which is atomic with
// respect to the single destination file.
type Provider interface {
	// FetchFile returns the raw bytes of a repository file
	FetchFile(repoPath string) ([]byte, error)

	// ListDirectory returns all file paths under a repository directory,
	// relative to the repository root. An empty result means nothing to
	// install, not an error.
	ListDirectory(dir string) ([]string, error)

	// DownloadFile fetches a repository file and writes it to destPath,
	// creating parent directories. On fetch failure the destination is
	// left untouched.
	DownloadFile(repoPath, destPath string) error
}

// New creates a provider for the given config. fs receives all local
// reads and destination writes.
func New(cfg Config, fs afero.Fs) Provider {
	if cfg.LocalMode && cfg.LocalRepoDir != "" {
		return &localProvider{cfg: cfg, fs: fs}
	}
	return &remoteProvider{
		cfg: cfg,
		fs:  fs,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// localProvider reads from a local working copy of the repository
type localProvider struct {
	cfg Config
	fs  afero.Fs
}

func (p *localProvider) FetchFile(repoPath string) ([]byte, error) {
	src := paths.InProject(p.cfg.LocalRepoDir, repoPath)
	data, err := afero.ReadFile(p.fs, src)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFetchFailed, "local file %s not available", repoPath)
	}
	return data, nil
}

func (p *localProvider) ListDirectory(dir string) ([]string, error) {
	root := paths.InProject(p.cfg.LocalRepoDir, dir)
	return filesystem.ListFilesRecursive(p.fs, p.cfg.LocalRepoDir, root)
}

func (p *localProvider) DownloadFile(repoPath, destPath string) error {
	src := paths.InProject(p.cfg.LocalRepoDir, repoPath)
	if filesystem.SamePath(src, destPath) {
		// Running the installer from inside the mirror itself
		return nil
	}
	data, err := p.FetchFile(repoPath)
	if err != nil {
		return err
	}
	return filesystem.WriteFileAtomic(p.fs, destPath, data, 0644)
}

// remoteProvider fetches from the published repository over HTTP
type remoteProvider struct {
	cfg    Config
	fs     afero.Fs
	client *http.Client
}

func (p *remoteProvider) FetchFile(repoPath string) ([]byte, error) {
	url := fmt.Sprintf("%s/raw/%s/%s", strings.TrimSuffix(p.cfg.RepoURL, "/"), p.cfg.Branch, repoPath)

	resp, err := p.client.Get(url)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFetchFailed, "failed to fetch %s", repoPath)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf(errors.ErrFetchFailed, "fetch %s returned status %d", repoPath, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFetchFailed, "failed to read %s", repoPath)
	}
	return data, nil
}

// ownerRepo extracts the "owner/name" part from a repository URL
func ownerRepo(repoURL string) string {
	trimmed := strings.TrimSuffix(repoURL, "/")
	if u, err := neturl.Parse(trimmed); err == nil && u.Path != "" {
		return strings.TrimPrefix(u.Path, "/")
	}
	return trimmed
}

// treeResponse is the GitHub git/trees API payload
type treeResponse struct {
	Tree []struct {
		Path string `json:"path"`
		Type string `json:"type"`
	} `json:"tree"`
}

func (p *remoteProvider) ListDirectory(dir string) ([]string, error) {
	logger := logging.GetLogger("source")

	url := fmt.Sprintf("%s/repos/%s/git/trees/%s?recursive=true",
		strings.TrimSuffix(p.cfg.APIHost, "/"), ownerRepo(p.cfg.RepoURL), p.cfg.Branch)

	resp, err := p.client.Get(url)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrListFailed, "failed to query repository tree")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf(errors.ErrListFailed, "repository tree query returned status %d", resp.StatusCode)
	}

	var tree treeResponse
	if err := json.NewDecoder(resp.Body).Decode(&tree); err != nil {
		return nil, errors.Wrap(err, errors.ErrListFailed, "failed to decode repository tree")
	}

	prefix := strings.TrimSuffix(dir, "/") + "/"
	var files []string
	for _, entry := range tree.Tree {
		if entry.Type != "blob" {
			continue
		}
		if entry.Path == dir || strings.HasPrefix(entry.Path, prefix) {
			files = append(files, entry.Path)
		}
	}

	logger.Debug().Str("dir", dir).Int("files", len(files)).Msg("Listed repository directory")
	return files, nil
}

func (p *remoteProvider) DownloadFile(repoPath, destPath string) error {
	data, err := p.FetchFile(repoPath)
	if err != nil {
		return err
	}
	return filesystem.WriteFileAtomic(p.fs, destPath, data, 0644)
}
