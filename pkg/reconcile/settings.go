package reconcile

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/maxritter/codepro/pkg/errors"
)

// ProjectDirPlaceholder is the token templates use for the absolute
// project directory
const ProjectDirPlaceholder = "{{PROJECT_DIR}}"

// ExpandSettingsTemplate substitutes the project-dir placeholder with the
// absolute destination directory
func ExpandSettingsTemplate(template []byte, projectDir string) []byte {
	return bytes.ReplaceAll(template, []byte(ProjectDirPlaceholder), []byte(projectDir))
}

// ParseSettings decodes a settings document for post-processing
func ParseSettings(data []byte) (map[string]interface{}, error) {
	var settings map[string]interface{}
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, errors.Wrap(err, errors.ErrParseFailed, "invalid settings JSON")
	}
	return settings, nil
}

// EncodeSettings renders a settings document back to disk format
func EncodeSettings(settings map[string]interface{}) ([]byte, error) {
	out, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrParseFailed, "failed to encode settings")
	}
	return append(out, '\n'), nil
}

// StripPythonSettings removes Python-specific hook commands and
// permission entries from a settings document, in place. hookMarker is
// matched as a substring of hooks.PostToolUse[].hooks[].command;
// permissions is the exact set removed from permissions.allow.
func StripPythonSettings(settings map[string]interface{}, hookMarker string, permissions []string) {
	if hooks, ok := settings["hooks"].(map[string]interface{}); ok {
		if postToolUse, ok := hooks["PostToolUse"].([]interface{}); ok {
			for _, group := range postToolUse {
				groupDoc, ok := group.(map[string]interface{})
				if !ok {
					continue
				}
				groupHooks, ok := groupDoc["hooks"].([]interface{})
				if !ok {
					continue
				}

				kept := make([]interface{}, 0, len(groupHooks))
				for _, hook := range groupHooks {
					hookDoc, isMap := hook.(map[string]interface{})
					if isMap {
						if command, _ := hookDoc["command"].(string); strings.Contains(command, hookMarker) {
							continue
						}
					}
					kept = append(kept, hook)
				}
				groupDoc["hooks"] = kept
			}
		}
	}

	if perms, ok := settings["permissions"].(map[string]interface{}); ok {
		if allow, ok := perms["allow"].([]interface{}); ok {
			removed := make(map[string]bool, len(permissions))
			for _, p := range permissions {
				removed[p] = true
			}

			kept := make([]interface{}, 0, len(allow))
			for _, entry := range allow {
				if s, isString := entry.(string); isString && removed[s] {
					continue
				}
				kept = append(kept, entry)
			}
			perms["allow"] = kept
		}
	}
}

// SkipPolicy controls which repository paths the file-install pass leaves
// alone
type SkipPolicy struct {
	// InstallPython keeps Python-specific hook files when true
	InstallPython bool

	// PythonHookMarker identifies Python hook files by substring
	PythonHookMarker string
}

// SkipManagedPath reports whether a repository path must not be installed
// over the destination: user-owned custom rules are never overwritten,
// materialized settings are only produced from their template, and Python
// hooks are omitted when Python support is not selected.
func (p SkipPolicy) SkipManagedPath(repoPath string) bool {
	if strings.Contains(repoPath, "rules/custom/") {
		return true
	}
	if strings.Contains(repoPath, "settings.local.json") && !strings.Contains(repoPath, "settings.local.template.json") {
		return true
	}
	if !p.InstallPython && p.PythonHookMarker != "" && strings.Contains(repoPath, p.PythonHookMarker) {
		return true
	}
	return false
}
