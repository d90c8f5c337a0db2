// Package events classifies ticket document transitions into discrete
// business events. Classification is a pure function of the before/after
// snapshots, so replaying a delivery always yields the same event.
package events

import "github.com/stagecrew/ticket-notifier/model"

// Type identifies a single classified business event. The values double as
// the eventType field of outbound email requests.
type Type string

const (
	// TypeStartedTreatment fires when a ticket enters treatment or execution.
	TypeStartedTreatment Type = "ticket_started_treatment"

	// TypeEscalatedToArea fires when a ticket changes owning area.
	TypeEscalatedToArea Type = "ticket_escalated_to_area"

	// TypeEscalatedToManager fires when a ticket enters the approval queue.
	TypeEscalatedToManager Type = "ticket_escalated_to_manager"

	// TypeManagerDecision fires when an awaiting-approval ticket is approved
	// or rejected.
	TypeManagerDecision Type = "manager_decision"

	// TypeExecuted fires when a ticket enters post-execution validation.
	TypeExecuted Type = "ticket_executed"

	// TypeExecutedOperatorValidation is the dispatch variant of TypeExecuted
	// for tickets created by area staff. It is never produced by Classify;
	// the executed-ticket handler selects it after the corrective routing
	// update succeeds.
	TypeExecutedOperatorValidation Type = "ticket_executed_operator_validation"
)

// Event is a classified ticket transition.
type Event struct {
	Type   Type
	Before *model.Ticket
	After  *model.Ticket
}

// startedTreatment reports whether the transition moved the ticket into one
// of the two active-work statuses from any other value.
func startedTreatment(before, after *model.Ticket) bool {
	if before.Status != model.StatusInTreatment && after.Status == model.StatusInTreatment {
		return true
	}
	return before.Status != model.StatusInExecution && after.Status == model.StatusInExecution
}

// Classify maps a before/after snapshot pair to at most one event. The rules
// are evaluated in strict priority order and the first match wins; the order
// of the area and manager rules is a carried-over precedence decision, not a
// documented business rule, so it must not be reordered.
func Classify(before, after *model.Ticket) (*Event, bool) {
	if before == nil || after == nil {
		return nil, false
	}

	var eventType Type
	switch {
	case startedTreatment(before, after):
		eventType = TypeStartedTreatment
	case before.Area != after.Area:
		eventType = TypeEscalatedToArea
	case before.Status != model.StatusAwaitingApproval && after.Status == model.StatusAwaitingApproval:
		eventType = TypeEscalatedToManager
	case before.Status == model.StatusAwaitingApproval &&
		(after.Status == model.StatusApproved || after.Status == model.StatusRejected):
		eventType = TypeManagerDecision
	case before.Status != model.StatusExecutedAwaitingValidation && after.Status == model.StatusExecutedAwaitingValidation:
		eventType = TypeExecuted
	default:
		return nil, false
	}

	return &Event{Type: eventType, Before: before, After: after}, true
}
