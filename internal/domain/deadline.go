package domain

import "time"

// DeadlineWindow returns the working window granted for a priority and work type.
// Urgent video work gets an extra hour over every other urgent classification.
func DeadlineWindow(priority TicketPriority, workType WorkType) time.Duration {
	switch priority {
	case TicketPriorityUrgent:
		if workType == WorkTypeVideo {
			return 3 * time.Hour
		}
		return 2 * time.Hour
	case TicketPriorityHigh:
		return 24 * time.Hour
	case TicketPriorityLow:
		return 168 * time.Hour
	default:
		return 72 * time.Hour
	}
}

// ComputeDeadline derives the due time from an injected reference time.
func ComputeDeadline(priority TicketPriority, workType WorkType, now time.Time) time.Time {
	return now.Add(DeadlineWindow(priority, workType))
}
