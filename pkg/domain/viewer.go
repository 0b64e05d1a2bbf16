package domain

import "time"

// Viewer payload constants. Scope is a fixed literal and the schema version
// is bumped only when the payload shape changes; adding any other field to
// ViewerSignal is a breaking contract change.
const (
	ViewerScopeCircle   = "circle"
	ViewerSchemaVersion = 1
)

// ViewerSignal is the only signal shape ever handed to a viewer: exactly
// color, expiry, scope, and schema version. It is derived on every read and
// never stored. Internal fields (owner, timestamps, anything else) must not
// appear here; the payload law re-checks that on every resolve.
type ViewerSignal struct {
	Color         Color  `json:"color"`
	TTLExpiresAt  string `json:"ttl_expires_at"`
	Scope         string `json:"scope"`
	SchemaVersion int    `json:"schema_version"`
}

// NewViewerSignal projects a live color and expiry into the viewer shape.
// The expiry is rendered as RFC 3339 in UTC.
func NewViewerSignal(color Color, expiresAt time.Time) ViewerSignal {
	return ViewerSignal{
		Color:         color,
		TTLExpiresAt:  expiresAt.UTC().Format(time.RFC3339),
		Scope:         ViewerScopeCircle,
		SchemaVersion: ViewerSchemaVersion,
	}
}

// UnknownViewerSignal is the projection for an absent or expired signal:
// color unknown, no expiry. The shape stays identical so callers never
// branch on structure.
func UnknownViewerSignal() ViewerSignal {
	return ViewerSignal{
		Color:         ColorUnknown,
		TTLExpiresAt:  "",
		Scope:         ViewerScopeCircle,
		SchemaVersion: ViewerSchemaVersion,
	}
}

// ConnectionSummary is the owner-facing view of one connection record.
type ConnectionSummary struct {
	ConnectionID      ConnectionID     `json:"connection_id"`
	RemoteUserID      UserID           `json:"remote_user_id"`
	RemoteDisplayHint string           `json:"remote_display_hint,omitempty"`
	Status            ConnectionStatus `json:"status"`
	InitiatedBy       InitiatedBy      `json:"initiated_by"`
	CreatedAt         time.Time        `json:"created_at"`
	StatusChangedAt   time.Time        `json:"status_changed_at"`
}
