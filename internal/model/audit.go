package model

import "time"

// AuditRecord is an append-only trail entry. State-changing operations
// persist their audit record in the same transaction as the change; a
// transition without its audit record is incomplete.
type AuditRecord struct {
	ID        string            `json:"id"`
	Action    string            `json:"action"`
	Actor     string            `json:"actor"`
	Entity    string            `json:"entity"`
	EntityID  string            `json:"entity_id"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
