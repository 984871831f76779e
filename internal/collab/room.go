// Package collab implements the per-room synchronization core: a Room owns
// one document's authoritative state and broadcasts updates to its
// connected clients, and a Server multiplexes many rooms keyed by an opaque
// path string. Both are generalized from the teacher backend's Room/
// RoomManager, replacing its document-CRUD event set with the sync
// protocol's SYNC/AWARENESS events.
package collab

import (
	"context"
	"sync"
	"time"

	"github.com/collabdocs/yroomd/internal/logger"
	"github.com/collabdocs/yroomd/internal/syncproto"
	"github.com/collabdocs/yroomd/internal/ydoc"
	"github.com/collabdocs/yroomd/internal/ystore"
)

// roomState mirrors the room lifecycle: New -> Running -> Stopped.
type roomState int

const (
	stateNew roomState = iota
	stateRunning
	stateStopped
)

type broadcastMsg struct {
	senderID string
	// data is the wire-framed message delivered to clients.
	data []byte
	// raw is the CRDT update bytes written to the YStore, if persist is
	// set. It is unset for awareness frames.
	raw []byte
	// echoSender, when true, is also delivered back to the sender (used for
	// awareness frames, which are relayed verbatim to the whole roster).
	echoSender bool
	// persist, when true, raw is also appended to the room's YStore. Sync
	// updates are persisted; awareness frames are not.
	persist bool
}

// Room owns one document's authoritative state, its connected clients, and
// (optionally) its durable update log.
type Room struct {
	Path string

	doc       *ydoc.Document
	awareness *ydoc.Awareness

	store     ystore.Store
	idleAfter time.Duration
	log       *logger.Logger

	mu      sync.RWMutex
	clients map[string]*Client
	state   roomState
	ready   bool

	lastActivity time.Time

	broadcast  chan broadcastMsg
	register   chan *Client
	unregister chan *Client

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRoom constructs a room for path. The room does not start accepting
// clients until Start is called.
func NewRoom(ctx context.Context, path string, store ystore.Store, idleAfter time.Duration, log *logger.Logger) *Room {
	if log == nil {
		log = logger.Default()
	}
	roomCtx, cancel := context.WithCancel(ctx)
	return &Room{
		Path:         path,
		doc:          ydoc.NewDocument(),
		awareness:    ydoc.NewAwareness(),
		store:        store,
		idleAfter:    idleAfter,
		log:          log,
		clients:      make(map[string]*Client),
		lastActivity: time.Now(),
		broadcast:    make(chan broadcastMsg, 65536),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		ctx:          roomCtx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
}

// Document returns the room's authoritative document.
func (r *Room) Document() *ydoc.Document { return r.doc }

// Awareness returns the room's presence table.
func (r *Room) Awareness() *ydoc.Awareness { return r.awareness }

// Start preloads the document from the store (if any) and launches the
// room's event loop. Preload errors are fatal: a room whose persisted state
// can't be read must not come up silently empty.
func (r *Room) Start() error {
	if r.store != nil {
		if err := r.preload(); err != nil {
			return err
		}
	}

	r.mu.Lock()
	r.state = stateRunning
	r.ready = true
	r.mu.Unlock()

	go r.run()
	return nil
}

func (r *Room) preload() error {
	for u, err := range r.store.Read(context.Background(), r.Path) {
		if err == ystore.ErrDocNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		if err := r.doc.ApplyUpdate("", u.Update); err != nil {
			return err
		}
	}
	return nil
}

// Ready reports whether the room has finished preloading and is accepting
// traffic.
func (r *Room) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ready
}

// Stop cancels the room's event loop and waits for cleanup to finish.
func (r *Room) Stop() {
	r.cancel()
	<-r.done
}

// Register adds client to the roster. It blocks until the room loop picks
// it up or the room's context is cancelled.
func (r *Room) Register(c *Client) {
	select {
	case r.register <- c:
	case <-r.ctx.Done():
	}
}

// Unregister removes client from the roster.
func (r *Room) Unregister(c *Client) {
	select {
	case r.unregister <- c:
	case <-r.ctx.Done():
	}
}

// ClientCount returns the number of currently registered clients.
func (r *Room) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// PublishUpdate fans out a sync-update frame (as produced by
// wire.CreateUpdateMessage) to every client except sender, and appends the
// raw CRDT update bytes to the room's YStore if one is configured.
func (r *Room) PublishUpdate(senderID string, frame, raw []byte) {
	select {
	case r.broadcast <- broadcastMsg{senderID: senderID, data: frame, raw: raw, persist: true}:
	case <-r.ctx.Done():
	}
}

// PublishAwareness fans out an awareness frame to every client, including
// sender: awareness is relayed verbatim to the whole roster and never
// persisted.
func (r *Room) PublishAwareness(senderID string, data []byte) {
	select {
	case r.broadcast <- broadcastMsg{senderID: senderID, data: data, echoSender: true}:
	case <-r.ctx.Done():
	}
}

func (r *Room) run() {
	defer close(r.done)

	idleTicker := time.NewTicker(idleCheckInterval(r.idleAfter))
	defer idleTicker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			r.cleanup()
			return

		case c := <-r.register:
			r.handleRegister(c)

		case c := <-r.unregister:
			r.handleUnregister(c)

		case msg := <-r.broadcast:
			r.handleBroadcast(msg)

		case <-idleTicker.C:
			r.checkIdle()
		}
	}
}

func idleCheckInterval(idleAfter time.Duration) time.Duration {
	if idleAfter <= 0 {
		return time.Minute
	}
	if quarter := idleAfter / 4; quarter > time.Second {
		return quarter
	}
	return time.Second
}

func (r *Room) handleRegister(c *Client) {
	r.mu.Lock()
	r.clients[c.ID] = c
	c.room = r
	r.lastActivity = time.Now()
	r.mu.Unlock()
}

func (r *Room) handleUnregister(c *Client) {
	r.mu.Lock()
	delete(r.clients, c.ID)
	r.lastActivity = time.Now()
	r.mu.Unlock()
	r.awareness.Clear(c.ID)
	c.close()
}

func (r *Room) handleBroadcast(msg broadcastMsg) {
	r.mu.RLock()
	targets := make([]*Client, 0, len(r.clients))
	for id, c := range r.clients {
		if id == msg.senderID && !msg.echoSender {
			continue
		}
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	for _, c := range targets {
		if dropped := c.enqueue(msg.data); dropped {
			r.log.Warnf("room %s: dropping message to slow client %s", r.Path, c.ID)
		}
	}

	if r.store != nil && msg.persist {
		go func(raw []byte) {
			if err := r.store.Write(context.Background(), r.Path, raw); err != nil {
				r.log.Errorf("room %s: store write failed: %v", r.Path, err)
			}
		}(msg.raw)
	}
}

func (r *Room) checkIdle() {
	r.mu.RLock()
	empty := len(r.clients) == 0
	idleFor := time.Since(r.lastActivity)
	r.mu.RUnlock()

	if empty && r.idleAfter > 0 && idleFor >= r.idleAfter {
		r.cancel()
	}
}

func (r *Room) cleanup() {
	r.mu.Lock()
	r.state = stateStopped
	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	r.clients = make(map[string]*Client)
	r.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

// WriteSyncStep1 builds this room's opening handshake frame.
func (r *Room) WriteSyncStep1() []byte {
	return syncproto.WriteSyncStep1(r.doc)
}
