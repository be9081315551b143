package changefeed

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicdocs/internal/config"
	"clinicdocs/internal/model"
	"clinicdocs/pkg/logging"
)

func newTestFeed(t *testing.T) (*RedisFeed, *miniredis.Miniredis) {
	t.Helper()
	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisFeed(client, "test", logging.NewWithWriter(&bytes.Buffer{}, "error")), m
}

func receive(t *testing.T, ch <-chan Change) Change {
	t.Helper()
	select {
	case c, ok := <-ch:
		require.True(t, ok, "channel closed")
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change")
	}
	return Change{}
}

func TestRedisFeed_PublishSubscribe(t *testing.T) {
	feed, _ := newTestFeed(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notes, err := feed.Subscribe(ctx, "notes")
	require.NoError(t, err)

	at := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, feed.Publish(ctx, Change{Type: ChangeSet, Collection: "referrals", ID: "r1", At: at}))
	require.NoError(t, feed.Publish(ctx, Change{
		Type:       ChangePatch,
		Collection: "notes",
		ID:         "n1",
		Data:       model.Fields{"text": "b"},
		At:         at,
	}))

	got := receive(t, notes)
	assert.Equal(t, ChangePatch, got.Type)
	assert.Equal(t, "n1", got.ID)
	assert.Equal(t, model.Fields{"text": "b"}, got.Data)
	assert.True(t, at.Equal(got.At))
}

func TestRedisFeed_SubscribeClosesOnCancel(t *testing.T) {
	feed, _ := newTestFeed(t)
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := feed.Subscribe(ctx, "notes")
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel was not closed after cancel")
	}
}

func TestRedisFeed_SkipsUndecodableMessages(t *testing.T) {
	feed, m := newTestFeed(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := feed.Subscribe(ctx, "notes")
	require.NoError(t, err)

	m.Publish("test:notes", "not-json")
	require.NoError(t, feed.Publish(ctx, Change{Type: ChangeDelete, Collection: "notes", ID: "n2"}))

	got := receive(t, ch)
	assert.Equal(t, ChangeDelete, got.Type)
	assert.Equal(t, "n2", got.ID)
}

func TestNewRedisClient(t *testing.T) {
	m := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), config.RedisConfig{Addr: m.Addr()})
	require.NoError(t, err)
	_ = client.Close()

	_, err = NewRedisClient(context.Background(), config.RedisConfig{})
	assert.ErrorContains(t, err, "redis addr is required")
}
