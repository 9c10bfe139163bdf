package hub

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func client(id, origin string, buf int) *Client {
	return &Client{ID: id, Origin: origin, Out: make(chan []byte, buf)}
}

func TestAddGetRemove(t *testing.T) {
	h := New()
	c := client("c1", "https://quiz.example.com", 4)
	h.Add(c)

	if got, ok := h.Get("c1"); !ok || got != c {
		t.Fatal("expected client retrievable")
	}
	if h.Len() != 1 {
		t.Fatalf("expected 1 client, got %d", h.Len())
	}
	h.Remove("c1")
	if _, ok := h.Get("c1"); ok {
		t.Fatal("expected client removed")
	}
}

func TestFindByOrigin(t *testing.T) {
	h := New()
	h.Add(client("a", "https://cdn.example.net", 1))
	own := client("b", "https://quiz.example.com", 1)
	h.Add(own)

	c, ok := h.FindByOrigin("https://quiz.example.com")
	if !ok || c.ID != "b" {
		t.Fatalf("expected own-origin client, got %+v ok=%v", c, ok)
	}
	if _, ok := h.FindByOrigin("https://other.example.org"); ok {
		t.Fatal("expected no match")
	}
}

func TestDetachReleasesWriteLoop(t *testing.T) {
	h := New()
	loopDone := make(chan struct{})
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := &Client{ID: "c1", Origin: "x", WS: ws, Out: make(chan []byte, 4)}
		h.Add(c)
		go h.WriteLoop(c, time.Second, func() { close(loopDone) })
		go func() {
			defer h.Detach("c1")
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	_ = conn.Close()

	// The write loop must exit even though no frame is ever sent to the
	// departed client.
	select {
	case <-loopDone:
	case <-time.After(2 * time.Second):
		t.Fatal("write loop still running after client detach")
	}
	if h.Len() != 0 {
		t.Fatalf("expected empty hub, got %d", h.Len())
	}
}

func TestSendAfterDetachIsDropped(t *testing.T) {
	h := New()
	c := client("c1", "x", 4)
	h.Add(c)
	h.Detach("c1")
	h.Detach("c1") // second detach is a no-op

	if h.Send(c, []byte("frame")) {
		t.Fatal("expected send to a detached client to be dropped")
	}
	if sent := h.Broadcast([]byte("frame")); sent != 0 {
		t.Fatalf("expected broadcast to reach nobody, got %d", sent)
	}
}

func TestBroadcastAndBackpressure(t *testing.T) {
	h := New()
	roomy := client("roomy", "x", 4)
	full := client("full", "x", 1)
	h.Add(roomy)
	h.Add(full)
	full.Out <- []byte("stuck") // fill the queue

	sent := h.Broadcast([]byte("frame"))
	if sent != 1 {
		t.Fatalf("expected 1 accepted (full client dropped), got %d", sent)
	}
	select {
	case b := <-roomy.Out:
		if string(b) != "frame" {
			t.Fatalf("unexpected frame %q", b)
		}
	default:
		t.Fatal("expected frame queued for roomy client")
	}
}
