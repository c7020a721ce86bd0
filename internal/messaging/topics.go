package messaging

// Order lifecycle topics. Messages are keyed by order number so all events
// for one order land on the same partition, in order.
const (
	TopicOrderPlaced    = "order.placed"
	TopicOrderCancelled = "order.cancelled"
)
