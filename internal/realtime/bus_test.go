package realtime

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UkralStul/blogsphere/internal/logger"
)

func TestRedisBus_RoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	bus, err := NewRedisBus(logger.Nop(), addr, fmt.Sprintf("blogsphere.test.%d", time.Now().UnixNano()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	relay := NewRelay(hub, bus, logger.Nop())
	require.NoError(t, relay.Start(ctx))

	ch, unsubscribe := hub.Subscribe("p1")
	defer unsubscribe()

	relay.Publish(ctx, Event{Type: CommentCreated, PostID: "p1", CommentID: "c1"})
	got := recv(t, ch)
	assert.Equal(t, CommentCreated, got.Type)
	assert.Equal(t, "c1", got.CommentID)
}

func TestNewRedisBus_RequiresAddress(t *testing.T) {
	_, err := NewRedisBus(logger.Nop(), "", "")
	assert.Error(t, err)
}
