// Package events provides a lightweight pub/sub bus for the alert
// execution lifecycle.
package events

// Event identifies a bus topic.
type Event string

const (
	EventAlertReceived    Event = "alert.received"
	EventOrderSubmitted   Event = "order.submitted"
	EventExecutionDone    Event = "execution.done"
	EventPositionsRefresh Event = "positions.refreshed"
)
