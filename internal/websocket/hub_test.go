package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/coder/websocket"

	"github.com/ralpholazo24/turi/internal/model"
)

func testHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// mockClient creates a Client with a send channel but no connection.
func mockClient(hub *Hub, groupID string) *Client {
	return &Client{
		hub:     hub,
		groupID: groupID,
		send:    make(chan []byte, sendBufferSize),
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := testHub()
	c1 := mockClient(hub, "g1")
	c2 := mockClient(hub, "g2")

	hub.Register(c1)
	hub.Register(c2)
	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("ClientCount() = %d, want 2", got)
	}
	if got := hub.GroupClientCount("g1"); got != 1 {
		t.Fatalf("GroupClientCount(g1) = %d, want 1", got)
	}

	hub.Unregister(c1)
	hub.Unregister(c1)
	hub.Unregister(c2)
	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("ClientCount() = %d, want 0", got)
	}
}

func TestBroadcastIsGroupScoped(t *testing.T) {
	hub := testHub()
	inGroup := mockClient(hub, "g1")
	other := mockClient(hub, "g2")
	hub.Register(inGroup)
	hub.Register(other)
	defer hub.Unregister(inGroup)
	defer hub.Unregister(other)

	hub.Broadcast(NewMessage("g1", "task", "completed", "t1", map[string]any{"assigned_index": float64(1)}))

	select {
	case data := <-inGroup.send:
		var got Message
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Type != "task_completed" || got.ID != "t1" || got.GroupID != "g1" {
			t.Errorf("message = %+v", got)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
	}

	select {
	case data := <-other.send:
		t.Errorf("client in another group received %s", data)
	default:
	}
}

func TestBroadcastFullBuffer(t *testing.T) {
	hub := testHub()
	c := mockClient(hub, "g1")
	hub.Register(c)
	defer hub.Unregister(c)

	for i := 0; i < sendBufferSize+1; i++ {
		hub.Broadcast(NewMessage("g1", "task", "skipped", "t1", nil))
	}

	count := 0
	for len(c.send) > 0 {
		<-c.send
		count++
	}
	if count != sendBufferSize {
		t.Errorf("buffered = %d, want %d", count, sendBufferSize)
	}
}

func TestConcurrentAccess(t *testing.T) {
	hub := testHub()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := mockClient(hub, "g1")
			hub.Register(c)
			hub.Broadcast(NewMessage("g1", "task", "updated", "t1", nil))
			hub.Unregister(c)
		}()
	}
	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("ClientCount() = %d, want 0", got)
	}
}

type stubGroups map[string]*model.Group

func (s stubGroups) Get(_ context.Context, id string) (*model.Group, error) {
	return s[id], nil
}

func TestHandleWebSocket(t *testing.T) {
	hub := testHub()
	groups := stubGroups{"g1": {ID: "g1", Name: "Flat 3B"}}
	srv := httptest.NewServer(HandleWebSocket(hub, groups))
	defer srv.Close()

	for _, tt := range []struct {
		query string
		want  int
	}{
		{"", http.StatusBadRequest},
		{"?group=nope", http.StatusNotFound},
	} {
		resp, err := http.Get(srv.URL + tt.query)
		if err != nil {
			t.Fatalf("GET %q: %v", tt.query, err)
		}
		resp.Body.Close()
		if resp.StatusCode != tt.want {
			t.Errorf("GET %q status = %d, want %d", tt.query, resp.StatusCode, tt.want)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"?group=g1", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	deadline := time.Now().Add(time.Second)
	for hub.GroupClientCount("g1") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Broadcast(NewMessage("g1", "task", "created", "t9", nil))
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got Message
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != "task_created" || got.ID != "t9" {
		t.Errorf("message = %+v", got)
	}
}
