package models

import (
	"encoding/json"
	"time"
)

// Audit actions. Placement rejections are logged as CONFLICT_REJECTED so
// contention on a resource can be traced after the fact.
const (
	AuditActionLogin          = "LOGIN"
	AuditActionLogout         = "LOGOUT"
	AuditActionPasswordChange = "PASSWORD_CHANGE"
	AuditActionCreate         = "CREATE"
	AuditActionUpdate         = "UPDATE"
	AuditActionDeactivate     = "DEACTIVATE"
	AuditActionExport         = "EXPORT"
	AuditActionConflict       = "CONFLICT_REJECTED"
	AuditActionStatusSweep    = "STATUS_SWEEP"
)

// AuditLog is one row of the audit trail. UserID is nil for entries
// written by background jobs.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// MarshalJSON emits the stored JSONB snapshots as objects instead of
// base64 strings.
func (a AuditLog) MarshalJSON() ([]byte, error) {
	type plain AuditLog
	return json.Marshal(struct {
		plain
		OldValues json.RawMessage `json:"old_values,omitempty"`
		NewValues json.RawMessage `json:"new_values,omitempty"`
	}{plain: plain(a), OldValues: rawOrNil(a.OldValues), NewValues: rawOrNil(a.NewValues)})
}

func rawOrNil(b []byte) json.RawMessage {
	if len(b) == 0 || !json.Valid(b) {
		return nil
	}
	return json.RawMessage(b)
}
