package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateRequirement OutboxAggregateType = "requirement"
	AggregateQuote       OutboxAggregateType = "quote"
	AggregateOrder       OutboxAggregateType = "order"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateRequirement,
	AggregateQuote,
	AggregateOrder,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventRequirementCreated   OutboxEventType = "requirement_created"
	EventRequirementPublished OutboxEventType = "requirement_published"
	EventRequirementSkipped   OutboxEventType = "requirement_skipped"
	EventRequirementExpired   OutboxEventType = "requirement_expired"
	EventQuoteSubmitted       OutboxEventType = "quote_submitted"
	EventQuoteAccepted        OutboxEventType = "quote_accepted"
	EventQuoteRejected        OutboxEventType = "quote_rejected"
	EventOrderConfirmed       OutboxEventType = "order_confirmed"
	EventOrderCancelled       OutboxEventType = "order_cancelled"
)

var validOutboxEventTypes = []OutboxEventType{
	EventRequirementCreated,
	EventRequirementPublished,
	EventRequirementSkipped,
	EventRequirementExpired,
	EventQuoteSubmitted,
	EventQuoteAccepted,
	EventQuoteRejected,
	EventOrderConfirmed,
	EventOrderCancelled,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxDLQErrorReason records why a row left outbox_events for outbox_dlq.
type OutboxDLQErrorReason string

const (
	// OutboxDLQReasonUnroutable: the row could not be resolved to a topic and
	// payload (unknown type, bad version, payload that does not decode).
	OutboxDLQReasonUnroutable OutboxDLQErrorReason = "unroutable"
	// OutboxDLQReasonNonRetryable: Pub/Sub refused the message permanently.
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
	// OutboxDLQReasonMaxAttempts: transient publish failures exhausted the budget.
	OutboxDLQReasonMaxAttempts OutboxDLQErrorReason = "max_attempts"
)

// Retryable reports whether replaying the row unchanged could succeed, which
// is what an operator checks before requeueing from the DLQ.
func (r OutboxDLQErrorReason) Retryable() bool {
	return r == OutboxDLQReasonMaxAttempts
}

func (r OutboxDLQErrorReason) IsValid() bool {
	switch r {
	case OutboxDLQReasonUnroutable, OutboxDLQReasonNonRetryable, OutboxDLQReasonMaxAttempts:
		return true
	}
	return false
}
