package dashboard

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsFeed_SubscribeUnsubscribe(t *testing.T) {
	f := newFixture(t)
	feed := NewStatsFeed(f.logs, nil)

	_, cancel1 := feed.Subscribe()
	_, cancel2 := feed.Subscribe()
	assert.Equal(t, 2, feed.Subscribers())

	cancel1()
	cancel1()
	assert.Equal(t, 1, feed.Subscribers())
	cancel2()
	assert.Equal(t, 0, feed.Subscribers())
}

func TestStatsFeed_PublishKeepsLatest(t *testing.T) {
	f := newFixture(t)
	feed := NewStatsFeed(f.logs, nil)
	ch, cancel := feed.Subscribe()
	defer cancel()

	feed.publish()
	f.logs.Info("one", nil)
	feed.publish()

	select {
	case st := <-ch:
		assert.Equal(t, 1, st.FileCount)
	default:
		t.Fatal("expected a snapshot")
	}
	select {
	case <-ch:
		t.Fatal("stale snapshot should have been replaced")
	default:
	}
}

func TestStatsFeed_PublishesOnDirectoryChange(t *testing.T) {
	f := newFixture(t)
	feed := NewStatsFeed(f.logs, nil)
	feed.debounce = 10 * time.Millisecond
	ch, cancel := feed.Subscribe()
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go feed.Run(ctx)
	<-feed.Ready()

	f.logs.Info("trigger", nil)

	select {
	case st := <-ch:
		assert.Equal(t, 1, st.FileCount)
	case <-time.After(3 * time.Second):
		t.Fatal("no stats published after append")
	}
}

func TestLogsLive_NotConfigured(t *testing.T) {
	f := newFixture(t)

	rec := do(t, f.srv.handler(), "GET", "/api/logs/live")

	assert.Equal(t, 503, rec.Code)
}

func TestLogsLive_StreamsStats(t *testing.T) {
	var feed *StatsFeed
	f := newFixture(t, func(c *ServerConfig) {
		feed = NewStatsFeed(c.Logs, nil)
		feed.debounce = 10 * time.Millisecond
		c.Feed = feed
	})

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go feed.Run(ctx)
	<-feed.Ready()

	ts := httptest.NewServer(f.srv.handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/logs/live"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var first liveMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "stats", first.Type)
	assert.Equal(t, 0, first.Stats.FileCount)

	f.logs.Info("pushed", nil)

	var next liveMessage
	require.NoError(t, conn.ReadJSON(&next))
	assert.Equal(t, 1, next.Stats.FileCount)
	assert.Equal(t, "0.00MB", next.Stats.TotalSize)
}

func TestServer_StartAndShutdown(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	ready := make(chan struct{})
	f.srv.SetReadyCallback(func() { close(ready) })

	done := make(chan error, 1)
	go func() { done <- f.srv.Start(ctx) }()

	select {
	case <-ready:
	case <-time.After(3 * time.Second):
		t.Fatal("server not ready")
	}
	assert.NotEqual(t, "127.0.0.1:0", f.srv.Addr())
	assert.Contains(t, f.diag.String(), "Dashboard started")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(6 * time.Second):
		t.Fatal("server did not shut down")
	}
}
