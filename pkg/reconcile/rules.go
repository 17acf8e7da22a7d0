package reconcile

import (
	"gopkg.in/yaml.v3"

	"github.com/maxritter/codepro/pkg/logging"
)

// MergeRulesConfig merges a freshly fetched rules config with the
// existing on-disk one. Standard rules always come from the fetched
// document; the rules.custom sequence of every command is user-owned and
// is carried forward verbatim from the existing document.
//
// A fetched document that does not parse preserves the existing file
// (OutcomeFailedSoft). An existing document that does not parse is
// replaced wholesale by the fetched one, since there is nothing
// recoverable to carry forward.
func MergeRulesConfig(existing, fetched []byte) ([]byte, Outcome) {
	logger := logging.GetLogger("reconcile.rules")

	var fetchedDoc map[string]interface{}
	if err := yaml.Unmarshal(fetched, &fetchedDoc); err != nil {
		logger.Warn().Err(err).Msg("Fetched rules config is not valid YAML, preserving existing file")
		return existing, OutcomeFailedSoft
	}

	if len(existing) == 0 {
		return fetched, OutcomeWritten
	}

	var existingDoc map[string]interface{}
	if err := yaml.Unmarshal(existing, &existingDoc); err != nil {
		logger.Warn().Err(err).Msg("Existing rules config is not valid YAML, installing fetched config; custom rules may need manual reconciliation")
		return fetched, OutcomeWritten
	}

	fetchedCommands := commandMap(fetchedDoc)
	existingCommands := commandMap(existingDoc)

	for name, cmd := range fetchedCommands {
		existingCmd, ok := existingCommands[name].(map[string]interface{})
		if !ok {
			continue
		}

		cmdDoc, ok := cmd.(map[string]interface{})
		if !ok {
			continue
		}

		rules, ok := cmdDoc["rules"].(map[string]interface{})
		if !ok {
			rules = map[string]interface{}{}
			cmdDoc["rules"] = rules
		}
		rules["custom"] = customRules(existingCmd)
	}

	out, err := yaml.Marshal(fetchedDoc)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to encode merged rules config, preserving existing file")
		return existing, OutcomeFailedSoft
	}
	return out, OutcomeMerged
}

func commandMap(doc map[string]interface{}) map[string]interface{} {
	if commands, ok := doc["commands"].(map[string]interface{}); ok {
		return commands
	}
	return map[string]interface{}{}
}

// customRules extracts the user-owned rules.custom sequence of a command,
// defaulting to an empty sequence
func customRules(cmd map[string]interface{}) []interface{} {
	rules, ok := cmd["rules"].(map[string]interface{})
	if !ok {
		return []interface{}{}
	}
	custom, ok := rules["custom"].([]interface{})
	if !ok {
		return []interface{}{}
	}
	return custom
}
