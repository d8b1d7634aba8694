package distributed

import (
	"context"
	"os"
	"testing"
	"time"

	"interviewroom/internal/core/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEventTypeFor(t *testing.T) {
	cases := map[domain.CallState]EventType{
		domain.CallJoined:             EventCallJoined,
		domain.CallError:              EventCallFailed,
		domain.CallIdle:               EventCallEnded,
		domain.CallAwaitingCredential: EventCallWaiting,
		domain.CallJoining:            EventCallStatus,
		domain.CallLeaving:            EventCallStatus,
	}
	for state, want := range cases {
		assert.Equal(t, want, eventTypeFor(domain.CallStatus{State: state}), state)
	}
}

// Needs a live server: INTERVIEWROOM_TEST_REDIS=localhost:6379 go test ./...
func TestEventBus_PublishSubscribe(t *testing.T) {
	addr := os.Getenv("INTERVIEWROOM_TEST_REDIS")
	if addr == "" {
		t.Skip("INTERVIEWROOM_TEST_REDIS not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	channel := "interviewroom:test:" + uuid.NewString()
	log := zap.NewNop().Sugar()
	publisher := NewEventBus(client, channel, "coordinator-a", uuid.NewString, log)
	watcher := NewEventBus(client, channel, "coordinator-b", uuid.NewString, log)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan *Event, 1)
	go func() {
		_ = watcher.Subscribe(ctx, false, func(e *Event) error {
			got <- e
			cancel()
			return nil
		})
	}()

	// give the subscription time to register
	require.Eventually(t, func() bool {
		n, err := client.PubSubNumSub(ctx, channel).Result()
		return err == nil && n[channel] > 0
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, publisher.PublishStatus(ctx, domain.CallStatus{State: domain.CallJoined, MeetingID: "m-1"}))

	select {
	case e := <-got:
		assert.Equal(t, EventCallJoined, e.Type)
		assert.Equal(t, "coordinator-a", e.InstanceID)
		assert.Equal(t, domain.MeetingID("m-1"), e.MeetingID)
		assert.NotEmpty(t, e.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("event not delivered")
	}
}
