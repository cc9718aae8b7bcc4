package enums

// OutboxAggregateType maps to outbox_events.aggregate_type.
type OutboxAggregateType string

const AggregateOrder OutboxAggregateType = "order"

func (a OutboxAggregateType) IsValid() bool {
	return member(a, []OutboxAggregateType{AggregateOrder})
}

// OutboxEventType maps to outbox_events.event_type and doubles as the
// event_type attribute on published messages.
type OutboxEventType string

const (
	EventOrderCreated      OutboxEventType = "order_created"
	EventOrderCancelled    OutboxEventType = "order_cancelled"
	EventPaymentDispatched OutboxEventType = "payment_dispatched"
	EventPaymentCompleted  OutboxEventType = "payment_completed"
	EventPaymentFailed     OutboxEventType = "payment_failed"
)

var outboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderCancelled,
	EventPaymentDispatched,
	EventPaymentCompleted,
	EventPaymentFailed,
}

func (e OutboxEventType) IsValid() bool {
	return member(e, outboxEventTypes)
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse("event type", value, outboxEventTypes)
}

// OutboxDLQErrorReason records why a row left the retry loop.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	return r == OutboxDLQReasonMaxAttempts || r == OutboxDLQReasonNonRetryable
}
