package reconcile

import (
	"encoding/json"

	"github.com/maxritter/codepro/pkg/logging"
)

// serverCollectionKeys are the recognized top-level manifest keys, in
// detection priority order.
var serverCollectionKeys = []string{"mcpServers", "servers"}

// MergeServerManifest merges a freshly fetched MCP server manifest with
// the existing on-disk one. Server entries are keyed by name: an existing
// server definition is never overwritten, unseen fetched servers are
// added. Top-level fields outside the server collection follow the same
// rule (existing wins).
//
// If the existing content is absent or unparsable the fetched manifest is
// returned verbatim. If the fetched content is unparsable the existing
// content is preserved and the outcome is OutcomeFailedSoft.
func MergeServerManifest(existing, fetched []byte) ([]byte, Outcome) {
	logger := logging.GetLogger("reconcile.mcp")

	var fetchedDoc map[string]interface{}
	if err := json.Unmarshal(fetched, &fetchedDoc); err != nil {
		logger.Warn().Err(err).Msg("Fetched manifest is not valid JSON, preserving existing file")
		return existing, OutcomeFailedSoft
	}

	if len(existing) == 0 {
		return normalizeJSON(fetched, fetchedDoc), OutcomeWritten
	}

	var existingDoc map[string]interface{}
	if err := json.Unmarshal(existing, &existingDoc); err != nil {
		logger.Warn().Err(err).Msg("Existing manifest is not valid JSON, replacing with fetched content")
		return normalizeJSON(fetched, fetchedDoc), OutcomeWritten
	}

	serverKey := detectServerKey(existingDoc, fetchedDoc)

	// Top level: fetched first, existing overlaid (existing wins)
	merged := make(map[string]interface{}, len(fetchedDoc)+len(existingDoc))
	for k, v := range fetchedDoc {
		merged[k] = v
	}
	for k, v := range existingDoc {
		merged[k] = v
	}

	if serverKey != "" {
		existingServers := serverMap(existingDoc, serverKey)
		fetchedServers := serverMap(fetchedDoc, serverKey)

		mergedServers := make(map[string]interface{}, len(fetchedServers)+len(existingServers))
		for name, def := range fetchedServers {
			mergedServers[name] = def
		}
		for name, def := range existingServers {
			mergedServers[name] = def
		}
		merged[serverKey] = mergedServers
	}

	out, err := marshalJSON(merged)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to encode merged manifest, preserving existing file")
		return existing, OutcomeFailedSoft
	}
	return out, OutcomeMerged
}

// detectServerKey returns the first recognized server-collection key
// present in either document, or "" when neither has one
func detectServerKey(existing, fetched map[string]interface{}) string {
	for _, key := range serverCollectionKeys {
		if _, ok := existing[key]; ok {
			return key
		}
	}
	for _, key := range serverCollectionKeys {
		if _, ok := fetched[key]; ok {
			return key
		}
	}
	return ""
}

func serverMap(doc map[string]interface{}, key string) map[string]interface{} {
	if servers, ok := doc[key].(map[string]interface{}); ok {
		return servers
	}
	return map[string]interface{}{}
}

// normalizeJSON re-encodes a parsed document so freshly written manifests
// share the same formatting as merged ones; falls back to the raw bytes
// if encoding fails.
func normalizeJSON(raw []byte, doc map[string]interface{}) []byte {
	out, err := marshalJSON(doc)
	if err != nil {
		return raw
	}
	return out
}

func marshalJSON(doc map[string]interface{}) ([]byte, error) {
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}
