package engine

import (
	"encoding/json"

	"github.com/miradorstack/mirador-digest/internal/models"
)

func strPtr(s string) *string { return &s }

func int64Ptr(v int64) *int64 { return &v }

func incidentRefs(ids ...int) []json.RawMessage {
	refs := make([]json.RawMessage, 0, len(ids))
	for _, id := range ids {
		data, _ := json.Marshal(id)
		refs = append(refs, data)
	}
	return refs
}

func incident(manager string, tags models.Tags) models.Incident {
	return models.Incident{Manager: manager, Tags: tags}
}
