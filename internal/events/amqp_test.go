package events

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_KeepsOrder(t *testing.T) {
	var rec Recorder
	ctx := context.Background()
	require.NoError(t, rec.Publish(ctx, Event{Type: RatingCreated}))
	require.NoError(t, rec.Publish(ctx, Event{Type: RatingDeleted}))

	assert.Equal(t, []string{RatingCreated, RatingDeleted}, rec.Types())
}

func TestAMQPPublisher_Smoke(t *testing.T) {
	url := os.Getenv("AMQP_URL")
	if url == "" {
		t.Skip("AMQP_URL not set; skipping broker smoke test")
	}

	pub, err := DialAMQP(url, "movielog.events.test", nil)
	require.NoError(t, err)
	defer pub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, pub.Publish(ctx, Event{Type: RatingCreated, MovieID: "m1", Aggregate: &Aggregate{Count: 1, Sum: 8, Average: 8}}))
}

func TestAMQPPublisher_GivesUpWhenBusy(t *testing.T) {
	pub := &AMQPPublisher{sem: make(chan struct{}, 1), exchange: DefaultExchange}
	// An earlier publish still holds the channel.
	pub.sem <- struct{}{}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := pub.Publish(ctx, Event{Type: RatingCreated})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "err = %v", err)
	assert.Less(t, time.Since(start), time.Second)
}
