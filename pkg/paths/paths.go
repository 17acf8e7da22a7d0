// Package paths provides centralized path handling for the installer.
// Project-relative paths are derived from the target project directory;
// machine-level paths follow the XDG Base Directory specification.
package paths

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
)

// Managed file and directory names inside the target project.
// These mirror the layout of the published repository and are not
// user-configurable.
const (
	// ClaudeDir is the managed configuration directory
	ClaudeDir = ".claude"

	// RulesDir is the rules subdirectory inside ClaudeDir
	RulesDir = ".claude/rules"

	// RulesConfigFile is the merged rules configuration
	RulesConfigFile = ".claude/rules/config.yaml"

	// SettingsTemplateFile is the settings template with the project placeholder
	SettingsTemplateFile = ".claude/settings.local.template.json"

	// SettingsFile is the materialized settings file
	SettingsFile = ".claude/settings.local.json"

	// StatuslineFile is the statusline configuration inside ClaudeDir
	StatuslineFile = ".claude/statusline.json"

	// BuildScript builds commands and skills from installed rules
	BuildScript = ".claude/rules/build.sh"

	// MCPConfigFile is the MCP server manifest
	MCPConfigFile = ".mcp.json"

	// MCPFunnelConfigFile is the MCP funnel manifest
	MCPFunnelConfigFile = ".mcp-funnel.json"

	// EnvFile is the managed environment key file
	EnvFile = ".env.codepro"

	// LegacyEnvFile is the pre-rename environment key file
	LegacyEnvFile = ".env"

	// NvmrcFile pins the Node.js version for the project
	NvmrcFile = ".nvmrc"
)

// RuleCategories are the rule directory categories shipped by the
// repository; each has a standard/ (managed) and custom/ (user) side.
var RuleCategories = []string{"core", "extended", "workflow"}

// InProject joins a repository-relative path onto the project directory
func InProject(projectDir, repoPath string) string {
	return filepath.Join(projectDir, filepath.FromSlash(repoPath))
}

// StandardRulesDir returns the managed standard rules directory for a category
func StandardRulesDir(projectDir, category string) string {
	return filepath.Join(projectDir, ClaudeDir, "rules", "standard", category)
}

// CustomRulesDir returns the user-owned custom rules directory for a category
func CustomRulesDir(projectDir, category string) string {
	return filepath.Join(projectDir, ClaudeDir, "rules", "custom", category)
}

// StatuslineTarget returns the machine-level ccstatusline settings path
func StatuslineTarget() string {
	return filepath.Join(xdg.ConfigHome, "ccstatusline", "settings.json")
}

// HomeDir returns the user's home directory, falling back to xdg.Home
func HomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return xdg.Home
	}
	return home
}

// ShellRCPath returns the rc file for the user's login shell
func ShellRCPath() string {
	shell := os.Getenv("SHELL")
	if strings.HasSuffix(shell, "zsh") {
		return filepath.Join(HomeDir(), ".zshrc")
	}
	return filepath.Join(HomeDir(), ".bashrc")
}

// ExpandHome expands a leading ~ or ~/ to the user's home directory
func ExpandHome(path string) string {
	if path == "~" {
		return HomeDir()
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(HomeDir(), path[2:])
	}
	return path
}
