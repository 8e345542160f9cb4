package governance

import (
	"time"

	"github.com/latticework/govkernel/pkg/eventlog"
)

// Event type constants. Command handlers only ever construct these as
// eventlog.NewEvent{EventType: ..., Payload: map[string]interface{}{...}}
// so that every Log backend (in-memory or SQL, which round-trips through
// canonical JSON) decodes payloads through the identical accessor path.
const (
	EventWorkspaceCreated  eventlog.EventType = "WorkspaceCreated"
	EventWorkspaceArchived eventlog.EventType = "WorkspaceArchived"

	EventDecisionRightDelegated eventlog.EventType = "DecisionRightDelegated"
	EventDelegationRevoked      eventlog.EventType = "DelegationRevoked"
	EventDelegationExpired      eventlog.EventType = "DelegationExpired"

	EventLawCreated          eventlog.EventType = "LawCreated"
	EventLawActivated        eventlog.EventType = "LawActivated"
	EventLawReviewTriggered  eventlog.EventType = "LawReviewTriggered"
	EventLawReviewCompleted  eventlog.EventType = "LawReviewCompleted"

	EventBudgetCreated       eventlog.EventType = "BudgetCreated"
	EventBudgetActivated     eventlog.EventType = "BudgetActivated"
	EventAllocationAdjusted  eventlog.EventType = "AllocationAdjusted"
	EventExpenditureApproved eventlog.EventType = "ExpenditureApproved"
	EventExpenditureRejected eventlog.EventType = "ExpenditureRejected"
	EventBudgetClosed        eventlog.EventType = "BudgetClosed"

	EventDelegationConcentrationWarning eventlog.EventType = "DelegationConcentrationWarning"
	EventDelegationConcentrationHalt    eventlog.EventType = "DelegationConcentrationHalt"
	EventTransparencyEscalated          eventlog.EventType = "TransparencyEscalated"
	EventBudgetBalanceViolationDetected eventlog.EventType = "BudgetBalanceViolationDetected"
	EventBudgetOverspendDetected        eventlog.EventType = "BudgetOverspendDetected"
	EventSupplierConcentrationWarning   eventlog.EventType = "SupplierConcentrationWarning"
	EventSupplierConcentrationHalt      eventlog.EventType = "SupplierConcentrationHalt"

	EventTenderCreated         eventlog.EventType = "TenderCreated"
	EventTenderOpened          eventlog.EventType = "TenderOpened"
	EventSupplierRegistered    eventlog.EventType = "SupplierRegistered"
	EventSupplierAwardRecorded eventlog.EventType = "SupplierAwardRecorded"
	EventTenderAwarded         eventlog.EventType = "TenderAwarded"
	EventTenderClosed          eventlog.EventType = "TenderClosed"
)

// payload is a tolerant accessor over an event's decoded map, since a
// SQL-backed Log round-trips payloads through canonical JSON (producing
// float64 for JSON numbers) while MemoryLog preserves whatever Go value
// a handler constructed. Handlers always build payloads as
// map[string]interface{} with string-encoded amounts and timestamps
// specifically so both backends decode identically.
type payload map[string]interface{}

func (p payload) str(key string) string {
	v, _ := p[key].(string)
	return v
}

func (p payload) strPtr(key string) *string {
	v, ok := p[key].(string)
	if !ok {
		return nil
	}
	return &v
}

func (p payload) timeVal(key string) time.Time {
	s := p.str(key)
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func (p payload) timePtr(key string) *time.Time {
	s, ok := p[key].(string)
	if !ok || s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	return &t
}

func (p payload) intVal(key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func (p payload) stringSlice(key string) []string {
	raw, ok := p[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (p payload) stringMap(key string) map[string]string {
	raw, ok := p[key].(map[string]interface{})
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

func asPayload(m map[string]interface{}) payload {
	if m == nil {
		return payload{}
	}
	return payload(m)
}

func timeStr(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func timePtrStr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return timeStr(*t)
}
