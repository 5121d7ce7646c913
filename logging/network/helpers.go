package network

import (
	"context"

	"stardrift/client/logging"
)

const (
	// EventStateChanged is emitted whenever the connection state machine moves.
	EventStateChanged logging.EventType = "network.state_changed"
	// EventProtocolError is emitted when an inbound message fails to decode.
	EventProtocolError logging.EventType = "network.protocol_error"
	// EventReconnectScheduled is emitted when a backoff attempt is armed.
	EventReconnectScheduled logging.EventType = "network.reconnect_scheduled"
	// EventHeartbeatTimeout is emitted after the missed-pong limit is reached.
	EventHeartbeatTimeout logging.EventType = "network.heartbeat_timeout"
	// EventQueueOverflow is emitted when the outbound queue drops its oldest entry.
	EventQueueOverflow logging.EventType = "network.queue_overflow"
)

// StatePayload captures a connection state transition.
type StatePayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ReconnectPayload captures backoff scheduling details.
type ReconnectPayload struct {
	Attempt int   `json:"attempt"`
	DelayMs int64 `json:"delayMs"`
}

// ProtocolErrorPayload captures the offending message type and decode error.
type ProtocolErrorPayload struct {
	MessageType string `json:"messageType"`
	Reason      string `json:"reason"`
}

// StateChanged publishes a connection state transition.
func StateChanged(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload StatePayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventStateChanged,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

// ProtocolError publishes a warning for a malformed or unknown inbound message.
func ProtocolError(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload ProtocolErrorPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventProtocolError,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

// ReconnectScheduled publishes the next backoff attempt.
func ReconnectScheduled(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload ReconnectPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventReconnectScheduled,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

// HeartbeatTimeout publishes a warning when the server stops answering pings.
func HeartbeatTimeout(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, missed int) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventHeartbeatTimeout,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
	}
	pub.Publish(ctx, event.WithExtra("missed", missed))
}

// QueueOverflow publishes a debug event for a dropped outbound message.
func QueueOverflow(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, droppedType string) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventQueueOverflow,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryNetwork,
	}
	pub.Publish(ctx, event.WithExtra("droppedType", droppedType))
}
