package dto

// RejectRequest payload.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// AssignRequest payload.
type AssignRequest struct {
	AssigneeID string `json:"assignee_id" validate:"required"`
}

// RevisionRequest payload.
type RevisionRequest struct {
	Note string `json:"note" validate:"max=2000"`
}

// RollbackRequest payload.
type RollbackRequest struct {
	ActivityID string `json:"activity_id" validate:"required"`
}

// ReminderRunRequest lets an admin trigger a scan with overrides.
type ReminderRunRequest struct {
	CooldownHours *float64 `json:"cooldown_hours" validate:"omitempty,gt=0"`
	IgnoreWindow  bool     `json:"ignore_window"`
}
