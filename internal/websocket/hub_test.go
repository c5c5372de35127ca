package notifyws

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/prolean/ProleanBack/internal/models"
	"github.com/prolean/ProleanBack/pkg/logger"
)

func receive(t *testing.T, client *Client) Message {
	t.Helper()
	select {
	case payload, ok := <-client.send:
		if !ok {
			t.Fatalf("client channel closed")
		}
		var msg Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for push")
	}
	return Message{}
}

func TestHubPushesToEveryConnectionOfRecipient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(logger.Nop())
	go hub.Run(ctx)

	first := NewClient(hub, nil, 7)
	second := NewClient(hub, nil, 7)
	other := NewClient(hub, nil, 8)
	hub.Register(first)
	hub.Register(second)
	hub.Register(other)

	hub.Push(7, models.Notification{ID: 11, UserID: 7, Title: "Session update", Type: models.NotificationInfo})

	for _, client := range []*Client{first, second} {
		msg := receive(t, client)
		if msg.Type != "notification" || msg.Notification == nil || msg.Notification.ID != 11 {
			t.Fatalf("unexpected message %+v", msg)
		}
	}

	select {
	case payload := <-other.send:
		t.Fatalf("user 8 should not receive anything, got %s", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubUnregisterClosesClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)

	client := NewClient(hub, nil, 3)
	hub.Register(client)
	hub.Unregister(client)

	select {
	case _, ok := <-client.send:
		if ok {
			t.Fatalf("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for close")
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	var logs bytes.Buffer
	hub := NewHub(logger.New(&logs, logger.LevelWarn))
	client := NewClient(hub, nil, 5)
	hub.clients[5] = map[*Client]struct{}{client: {}}

	for i := 0; i < clientBuffer+1; i++ {
		hub.sendToUser(5, []byte(`{"type":"notification"}`))
	}

	if _, ok := hub.clients[5]; ok {
		t.Fatalf("expected slow client to be removed")
	}
	received := 0
	for range client.send {
		received++
	}
	if received != clientBuffer {
		t.Fatalf("expected %d buffered pushes, got %d", clientBuffer, received)
	}
	if !strings.Contains(logs.String(), "slow websocket client disconnected") {
		t.Fatalf("expected warning, got %q", logs.String())
	}
}

func TestPushWithoutConnectionsIsNoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil)
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	hub.Push(99, models.Notification{ID: 1, UserID: 99})
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("hub did not stop")
	}
}

func TestEncodeMessageShape(t *testing.T) {
	payload, err := encodeMessage(Message{Type: "pong", Timestamp: "2026-01-01T00:00:00Z"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if strings.Contains(string(payload), "notification") {
		t.Fatalf("empty notification should be omitted: %s", payload)
	}
}

func TestHubAnswersPingForRegisteredClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)

	client := NewClient(hub, nil, 4)
	hub.Register(client)
	hub.Pong(client)

	if msg := receive(t, client); msg.Type != "pong" {
		t.Fatalf("expected pong, got %+v", msg)
	}
}

func TestHubIgnoresPingFromEvictedClient(t *testing.T) {
	hub := NewHub(nil)
	client := NewClient(hub, nil, 6)
	hub.clients[6] = map[*Client]struct{}{client: {}}

	for i := 0; i < clientBuffer+5; i++ {
		hub.sendToUser(6, []byte(`{"type":"notification"}`))
	}
	if _, ok := hub.clients[6]; ok {
		t.Fatalf("expected client to be evicted")
	}
	hub.pong(client)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	hub.Pong(client)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("hub did not stop")
	}

	received := 0
	for range client.send {
		received++
	}
	if received != clientBuffer {
		t.Fatalf("expected only the %d buffered pushes, got %d", clientBuffer, received)
	}
}

func TestHubRegisterAfterShutdownDoesNotBlock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil)
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	client := NewClient(hub, nil, 9)
	finished := make(chan struct{})
	go func() {
		hub.Register(client)
		hub.Unregister(client)
		hub.Pong(client)
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatalf("register/unregister blocked after shutdown")
	}
	if _, ok := <-client.send; ok {
		t.Fatalf("expected send channel closed after late register")
	}
}
