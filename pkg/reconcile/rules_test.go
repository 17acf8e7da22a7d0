package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func decodeYAML(t *testing.T, data []byte) map[string]interface{} {
	t.Helper()
	var doc map[string]interface{}
	require.NoError(t, yaml.Unmarshal(data, &doc))
	return doc
}

func TestMergeRulesConfig(t *testing.T) {
	t.Run("custom_rules_preserved_standard_rules_updated", func(t *testing.T) {
		existing := []byte("commands:\n  plan:\n    rules:\n      custom:\n        - foo\n")
		fetched := []byte("commands:\n  plan:\n    rules:\n      standard:\n        - bar\n")

		merged, outcome := MergeRulesConfig(existing, fetched)
		assert.Equal(t, OutcomeMerged, outcome)

		doc := decodeYAML(t, merged)
		plan := doc["commands"].(map[string]interface{})["plan"].(map[string]interface{})
		rules := plan["rules"].(map[string]interface{})

		assert.Equal(t, []interface{}{"bar"}, rules["standard"])
		assert.Equal(t, []interface{}{"foo"}, rules["custom"])
	})

	t.Run("missing_rules_key_in_fetched_is_created", func(t *testing.T) {
		existing := []byte("commands:\n  plan:\n    rules:\n      custom:\n        - foo\n")
		fetched := []byte("commands:\n  plan:\n    description: updated\n")

		merged, outcome := MergeRulesConfig(existing, fetched)
		assert.Equal(t, OutcomeMerged, outcome)

		plan := decodeYAML(t, merged)["commands"].(map[string]interface{})["plan"].(map[string]interface{})
		rules := plan["rules"].(map[string]interface{})
		assert.Equal(t, []interface{}{"foo"}, rules["custom"])
	})

	t.Run("missing_custom_defaults_to_empty_sequence", func(t *testing.T) {
		existing := []byte("commands:\n  plan:\n    rules:\n      standard:\n        - old\n")
		fetched := []byte("commands:\n  plan:\n    rules:\n      standard:\n        - new\n")

		merged, outcome := MergeRulesConfig(existing, fetched)
		assert.Equal(t, OutcomeMerged, outcome)

		plan := decodeYAML(t, merged)["commands"].(map[string]interface{})["plan"].(map[string]interface{})
		rules := plan["rules"].(map[string]interface{})
		assert.Equal(t, []interface{}{}, rules["custom"])
	})

	t.Run("command_only_in_fetched_is_kept_as_is", func(t *testing.T) {
		existing := []byte("commands:\n  plan:\n    rules:\n      custom: [foo]\n")
		fetched := []byte("commands:\n  verify:\n    rules:\n      standard: [bar]\n")

		merged, outcome := MergeRulesConfig(existing, fetched)
		assert.Equal(t, OutcomeMerged, outcome)

		commands := decodeYAML(t, merged)["commands"].(map[string]interface{})
		assert.Contains(t, commands, "verify")
		// Commands dropped upstream disappear; only their custom rules
		// would have been carried had the command survived
		assert.NotContains(t, commands, "plan")
	})

	t.Run("absent_existing_writes_fetched_verbatim", func(t *testing.T) {
		fetched := []byte("commands:\n  plan:\n    rules:\n      standard: [bar]\n")

		merged, outcome := MergeRulesConfig(nil, fetched)
		assert.Equal(t, OutcomeWritten, outcome)
		assert.Equal(t, fetched, merged)
	})

	t.Run("unparsable_fetched_preserves_existing", func(t *testing.T) {
		existing := []byte("commands: {}\n")
		fetched := []byte(":\tnot yaml\n\t-")

		merged, outcome := MergeRulesConfig(existing, fetched)
		assert.Equal(t, OutcomeFailedSoft, outcome)
		assert.Equal(t, existing, merged)
	})

	t.Run("unparsable_existing_replaced_by_fetched", func(t *testing.T) {
		existing := []byte(":\tnot yaml\n\t-")
		fetched := []byte("commands: {}\n")

		merged, outcome := MergeRulesConfig(existing, fetched)
		assert.Equal(t, OutcomeWritten, outcome)
		assert.Equal(t, fetched, merged)
	})
}
