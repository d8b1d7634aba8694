package distributed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"interviewroom/internal/core/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type EventType string

const (
	EventCallStatus  EventType = "call.status"
	EventCallJoined  EventType = "call.joined"
	EventCallFailed  EventType = "call.failed"
	EventCallEnded   EventType = "call.ended"
	EventCallWaiting EventType = "call.awaiting_credential"
)

// Event is a call status change as seen by other services, e.g. the platform backend
// marking a candidate present.
type Event struct {
	ID         string            `json:"id"`
	Type       EventType         `json:"type"`
	InstanceID string            `json:"instance_id"`
	Timestamp  time.Time         `json:"timestamp"`
	MeetingID  domain.MeetingID  `json:"meeting_id,omitempty"`
	Status     domain.CallStatus `json:"status"`
}

func eventTypeFor(st domain.CallStatus) EventType {
	switch st.State {
	case domain.CallJoined:
		return EventCallJoined
	case domain.CallError:
		return EventCallFailed
	case domain.CallIdle:
		return EventCallEnded
	case domain.CallAwaitingCredential:
		return EventCallWaiting
	default:
		return EventCallStatus
	}
}

// EventBus publishes call status events over Redis pub/sub and implements
// ports.StatusPublisher.
type EventBus struct {
	client     redis.UniversalClient
	channel    string
	instanceID string
	newID      func() string
	now        func() time.Time
	logger     *zap.SugaredLogger

	mu     sync.Mutex
	pubsub *redis.PubSub
}

func NewEventBus(client redis.UniversalClient, channel, instanceID string, newID func() string, logger *zap.SugaredLogger) *EventBus {
	return &EventBus{
		client:     client,
		channel:    channel,
		instanceID: instanceID,
		newID:      newID,
		now:        time.Now,
		logger:     logger,
	}
}

func (eb *EventBus) PublishStatus(ctx context.Context, status domain.CallStatus) error {
	return eb.Publish(ctx, &Event{
		Type:      eventTypeFor(status),
		MeetingID: status.MeetingID,
		Status:    status,
	})
}

func (eb *EventBus) Publish(ctx context.Context, event *Event) error {
	event.ID = eb.newID()
	event.InstanceID = eb.instanceID
	event.Timestamp = eb.now().UTC()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := eb.client.Publish(ctx, eb.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	eb.logger.Debugw("Published call event",
		"type", event.Type,
		"meeting_id", event.MeetingID,
		"state", event.Status.State,
	)
	return nil
}

// Subscribe calls handler for every event on the channel until ctx is done.
// includeOwn also delivers events published by this instance.
func (eb *EventBus) Subscribe(ctx context.Context, includeOwn bool, handler func(*Event) error) error {
	eb.mu.Lock()
	if eb.pubsub != nil {
		eb.mu.Unlock()
		return errors.New("already subscribed")
	}
	pubsub := eb.client.Subscribe(ctx, eb.channel)
	eb.pubsub = pubsub
	eb.mu.Unlock()

	defer func() {
		eb.mu.Lock()
		eb.pubsub = nil
		eb.mu.Unlock()
		_ = pubsub.Close()
	}()

	// wait for the subscription to be confirmed so no event published afterwards is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", eb.channel, err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				eb.logger.Warnw("Failed to unmarshal event",
					"error", err,
					"payload", msg.Payload,
				)
				continue
			}
			if !includeOwn && event.InstanceID == eb.instanceID {
				continue
			}
			if err := handler(&event); err != nil {
				eb.logger.Warnw("Error handling event",
					"type", event.Type,
					"error", err,
				)
			}
		}
	}
}

func (eb *EventBus) Close() error {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	if eb.pubsub != nil {
		return eb.pubsub.Close()
	}
	return nil
}
