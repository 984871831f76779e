package collab

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/collabdocs/yroomd/internal/wire"
)

// pipeConn is an in-memory Conn backed by a channel, used to drive Server.Serve
// in tests without a real network socket.
type pipeConn struct {
	in     chan []byte
	outMu  sync.Mutex
	out    [][]byte
	closed chan struct{}
	once   sync.Once
}

func newPipeConn() *pipeConn {
	return &pipeConn{in: make(chan []byte, 64), closed: make(chan struct{})}
}

func (p *pipeConn) ReadMessage() ([]byte, error) {
	select {
	case m, ok := <-p.in:
		if !ok {
			return nil, errClosed
		}
		return m, nil
	case <-p.closed:
		return nil, errClosed
	}
}

func (p *pipeConn) Send(data []byte) error {
	p.outMu.Lock()
	p.out = append(p.out, append([]byte(nil), data...))
	p.outMu.Unlock()
	return nil
}

func (p *pipeConn) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func (p *pipeConn) outbox() [][]byte {
	p.outMu.Lock()
	defer p.outMu.Unlock()
	out := make([][]byte, len(p.out))
	copy(out, p.out)
	return out
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

const errClosed = simpleErr("pipeConn closed")

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestServeTwoClientEcho(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewServer(ctx, nil, time.Minute, nil)

	connA := newPipeConn()
	connB := newPipeConn()

	go s.Serve(ctx, connA, "room1", nil)
	go s.Serve(ctx, connB, "room1", nil)

	waitFor(t, func() bool { return s.GetRoom("room1") != nil && s.GetRoom("room1").ClientCount() == 2 })

	update := wire.CreateUpdateMessage([]byte("hello-from-a"))
	connA.in <- update

	waitFor(t, func() bool {
		for _, m := range connB.outbox() {
			if containsUpdate(m, "hello-from-a") {
				return true
			}
		}
		return false
	})

	for _, m := range connA.outbox() {
		if containsUpdate(m, "hello-from-a") {
			t.Fatal("sender should not receive its own update back")
		}
	}
}

func containsUpdate(msg []byte, want string) bool {
	msgType, payload, err := wire.SplitMessage(msg)
	if err != nil || msgType != wire.MessageSync {
		return false
	}
	subType, data, err := wire.SplitSyncMessage(payload)
	if err != nil || subType != wire.SyncUpdate {
		return false
	}
	return string(data) == want
}

func TestServeAwarenessSelfEcho(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewServer(ctx, nil, time.Minute, nil)
	connA := newPipeConn()
	go s.Serve(ctx, connA, "room2", nil)

	waitFor(t, func() bool { return s.GetRoom("room2") != nil })

	connA.in <- wire.CreateAwarenessMessage([]byte("presence-blob"))

	waitFor(t, func() bool {
		for _, m := range connA.outbox() {
			msgType, payload, err := wire.SplitMessage(m)
			if err == nil && msgType == wire.MessageAwareness && string(payload) == "presence-blob" {
				return true
			}
		}
		return false
	})
}

func TestUnknownTopLevelTypeDropped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewServer(ctx, nil, time.Minute, nil)
	room := NewRoom(ctx, "room3", nil, time.Minute, nil)
	if err := room.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	client := newClient("c1", newPipeConn())
	room.Register(client)

	if err := s.dispatch(room, client, []byte{0x7f, 0x01, 0x02}); err != nil {
		t.Fatalf("dispatch of unknown type should not error, got %v", err)
	}
}

func TestRoomAutoCleanupOnIdle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	room := NewRoom(ctx, "room4", nil, 20*time.Millisecond, nil)
	if err := room.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-room.done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected idle room to self-cancel")
	}
}
