package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-slot-reservation/internal/logging"
)

func TestHubBroadcastsToClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(nil, logging.Discard())
	go hub.Run(ctx)

	e := echo.New()
	e.GET("/slots/stream", hub.ServeWS)
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/slots/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// registration is asynchronous; publish until the client sees a message
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	got := make(chan map[string]any, 1)
	go func() {
		_, data, err := conn.ReadMessage()
		if err != nil {
			close(got)
			return
		}
		var m map[string]any
		_ = json.Unmarshal(data, &m)
		got <- m
	}()

	deadline := time.After(3 * time.Second)
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case m, ok := <-got:
			if !ok {
				t.Fatal("connection closed before a message arrived")
			}
			if m["slot_id"] != float64(2) {
				t.Errorf("message = %v", m)
			}
			return
		case <-tick.C:
			_ = hub.Publish(context.Background(), "parking.slot.reserved", map[string]any{"slot_id": 2})
		case <-deadline:
			t.Fatal("timed out waiting for broadcast")
		}
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	hub := NewHub(nil, logging.Discard())
	// Run is not started, so the queue fills up and further events are dropped.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			_ = hub.Publish(context.Background(), "parking.slot.paid", i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full queue")
	}
}

func TestStreamOriginCheck(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		ok      bool
	}{
		{"same origin by default", nil, "", true},
		{"cross origin refused by default", nil, "https://evil.example", false},
		{"listed origin", []string{"https://dash.example/"}, "https://DASH.example", true},
		{"unlisted origin", []string{"https://dash.example"}, "https://evil.example", false},
		{"wildcard", []string{"*"}, "https://anything.example", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			hub := NewHub(tt.allowed, logging.Discard())
			go hub.Run(ctx)

			e := echo.New()
			e.GET("/slots/stream", hub.ServeWS)
			srv := httptest.NewServer(e)
			defer srv.Close()

			hdr := http.Header{}
			if tt.origin != "" {
				hdr.Set("Origin", tt.origin)
			}
			url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/slots/stream"
			conn, _, err := websocket.DefaultDialer.Dial(url, hdr)
			if conn != nil {
				conn.Close()
			}
			if (err == nil) != tt.ok {
				t.Errorf("dial err = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}
