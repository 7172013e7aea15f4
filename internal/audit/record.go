package audit

import "time"

// Resource types recorded in the audit trail.
const (
	ResourceRole  = "role"
	ResourceGroup = "group"
)

// Record is one persisted audit event.
type Record struct {
	ID           string
	EventKind    string
	ResourceType string
	ResourceID   string
	ActorUserID  string
	Properties   map[string]any
	OccurredAt   time.Time
}

// TimelineFilters narrows a timeline query.
type TimelineFilters struct {
	From         time.Time
	To           time.Time
	EventKind    string
	ResourceType string
	ResourceID   string
	ActorUserID  string
	Page         int
	PageSize     int
}

// PagingInfo carries pagination metadata alongside a timeline page.
type PagingInfo struct {
	Page     int
	PageSize int
	HasNext  bool
	PrevPage int
	NextPage int
}

// Result bundles a timeline page with its paging info.
type Result struct {
	Rows   []Record
	Paging PagingInfo
}
