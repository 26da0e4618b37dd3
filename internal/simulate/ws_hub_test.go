package simulate

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/aporte/returns-engine/internal/metrics"
)

// dialPair upgrades one server-side connection and returns both ends.
func dialPair(t *testing.T) (server, client *websocket.Conn) {
	t.Helper()
	conns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		conns <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	select {
	case server = <-conns:
	case <-time.After(2 * time.Second):
		t.Fatal("server side of the connection never arrived")
	}
	t.Cleanup(func() { server.Close() })
	return server, client
}

func (h *WSHub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestWSHub_BroadcastEvictsDeadClients(t *testing.T) {
	h := NewWSHub()
	go h.Run()

	aliveSrv, aliveCli := dialPair(t)
	deadSrv, _ := dialPair(t)

	gaugeBefore := testutil.ToFloat64(metrics.WebSocketClients)
	h.register <- aliveSrv
	h.register <- deadSrv
	waitFor(t, "both clients registered", func() bool { return h.clientCount() == 2 })

	// Kill one server-side connection so the next broadcast write fails.
	deadSrv.Close()
	h.Broadcast(WSMessage{Type: "series_refreshed", Ticker: "PETR4.SA", BarCount: 3})

	waitFor(t, "dead client evicted", func() bool { return h.clientCount() == 1 })
	waitFor(t, "gauge to follow the eviction", func() bool {
		return testutil.ToFloat64(metrics.WebSocketClients) == gaugeBefore+1
	})

	// The surviving client still receives the message.
	aliveCli.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := aliveCli.ReadMessage()
	if err != nil {
		t.Fatalf("surviving client read: %v", err)
	}
	if !strings.Contains(string(msg), "PETR4.SA") {
		t.Errorf("unexpected message: %s", msg)
	}

	h.unregister <- aliveSrv
	waitFor(t, "surviving client unregistered", func() bool { return h.clientCount() == 0 })
	waitFor(t, "gauge back to baseline", func() bool {
		return testutil.ToFloat64(metrics.WebSocketClients) == gaugeBefore
	})
}

func TestWSHub_EvictionSafeUnderConcurrentMembershipReads(t *testing.T) {
	h := NewWSHub()
	go h.Run()

	aliveSrv, _ := dialPair(t)
	h.register <- aliveSrv
	waitFor(t, "client registered", func() bool { return h.clientCount() == 1 })

	// Hammer membership reads the way the ping loops do while broadcasts
	// keep evicting freshly-killed connections.
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			default:
				h.mu.RLock()
				_ = h.clients[aliveSrv]
				h.mu.RUnlock()
			}
		}
	}()

	for i := 0; i < 5; i++ {
		deadSrv, _ := dialPair(t)
		h.register <- deadSrv
		waitFor(t, "dead client registered", func() bool { return h.clientCount() == 2 })
		deadSrv.Close()
		h.Broadcast(WSMessage{Type: "series_refreshed", Ticker: "VALE3.SA"})
		waitFor(t, "dead client evicted", func() bool { return h.clientCount() == 1 })
	}
	close(done)

	h.unregister <- aliveSrv
	waitFor(t, "client unregistered", func() bool { return h.clientCount() == 0 })
}
