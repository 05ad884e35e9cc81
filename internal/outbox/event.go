package outbox

// Event is the domain event envelope written to the outbox table inside the
// transaction that caused it. The Kafka topic name equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Event types published by this service.
const (
	EventNotificationRequested = "garage.notification.requested.v1"
	EventNotificationDLQ       = "garage.notification.dlq.v1"
)
