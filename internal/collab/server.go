package collab

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/collabdocs/yroomd/internal/logger"
	"github.com/collabdocs/yroomd/internal/syncproto"
	"github.com/collabdocs/yroomd/internal/wire"
	"github.com/collabdocs/yroomd/internal/ystore"
)

// Server multiplexes many rooms, each keyed by an opaque path string, and
// drives the hot path that couples a transport connection to a room for the
// lifetime of one client. It never assumes a particular transport: Serve
// takes any Conn.
type Server struct {
	store     ystore.Store
	idleAfter time.Duration
	log       *logger.Logger

	mu    sync.RWMutex
	rooms map[string]*Room
	ctx   context.Context
}

// NewServer returns a Server backed by store (nil disables persistence)
// with the given idle timeout and logger.
func NewServer(ctx context.Context, store ystore.Store, idleAfter time.Duration, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Default()
	}
	return &Server{store: store, idleAfter: idleAfter, log: log, rooms: make(map[string]*Room), ctx: ctx}
}

// GetOrCreateRoom returns the room for path, creating and starting it (with
// store preload) if it doesn't exist yet.
func (s *Server) GetOrCreateRoom(path string) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if room, ok := s.rooms[path]; ok {
		return room, nil
	}

	room := NewRoom(s.ctx, path, s.store, s.idleAfter, s.log)
	if err := room.Start(); err != nil {
		return nil, fmt.Errorf("collab: preload room %q: %w", path, err)
	}
	s.rooms[path] = room
	go s.awaitStop(room)
	return room, nil
}

func (s *Server) awaitStop(room *Room) {
	<-room.done
	s.mu.Lock()
	if s.rooms[room.Path] == room {
		delete(s.rooms, room.Path)
	}
	s.mu.Unlock()
}

// GetRoom returns the room for path, or nil if it doesn't exist.
func (s *Server) GetRoom(path string) *Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rooms[path]
}

// RenameOpts selects the room to rename: exactly one of From/FromRoom.
type RenameOpts struct {
	From     string
	FromRoom *Room
	To       string
}

// RenameRoom reindexes a room under a new path.
func (s *Server) RenameRoom(opts RenameOpts) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var from string
	switch {
	case opts.FromRoom != nil:
		for p, r := range s.rooms {
			if r == opts.FromRoom {
				from = p
				break
			}
		}
		if from == "" {
			return fmt.Errorf("collab: room not found in server")
		}
	case opts.From != "":
		from = opts.From
	default:
		return fmt.Errorf("collab: RenameOpts requires From or FromRoom")
	}

	room, ok := s.rooms[from]
	if !ok {
		return fmt.Errorf("collab: no room at path %q", from)
	}
	delete(s.rooms, from)
	room.Path = opts.To
	s.rooms[opts.To] = room
	return nil
}

// DeleteOpts selects the room to delete: exactly one of Name/Room.
type DeleteOpts struct {
	Name string
	Room *Room
}

// DeleteRoom stops a room and removes it from the server.
func (s *Server) DeleteRoom(opts DeleteOpts) error {
	s.mu.Lock()
	var room *Room
	var name string
	switch {
	case opts.Room != nil:
		for p, r := range s.rooms {
			if r == opts.Room {
				room, name = r, p
				break
			}
		}
	case opts.Name != "":
		room, name = s.rooms[opts.Name], opts.Name
	}
	if room == nil {
		s.mu.Unlock()
		return fmt.Errorf("collab: room not found")
	}
	delete(s.rooms, name)
	s.mu.Unlock()

	room.Stop()
	return nil
}

// RoomCount returns the number of active rooms.
func (s *Server) RoomCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// CloseAll stops every active room.
func (s *Server) CloseAll() {
	s.mu.RLock()
	rooms := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r)
	}
	s.mu.RUnlock()

	for _, r := range rooms {
		r.cancel()
	}
}

// OnMessageFunc inspects a raw inbound frame before it's dispatched; if it
// returns false the message is dropped and never reaches the room.
type OnMessageFunc func(clientID string, msg []byte) bool

// Serve couples conn to the room at path for as long as the connection
// stays open: it registers a client, sends the opening handshake, then
// dispatches every inbound frame to the sync engine or the awareness
// table, relaying the result to the rest of the room's roster. It returns
// when a read from the connection fails (e.g. it closes). ctx is checked
// between reads, so a cancellation takes effect once the pending read
// returns.
func (s *Server) Serve(ctx context.Context, conn Conn, path string, onMessage OnMessageFunc) error {
	room, err := s.GetOrCreateRoom(path)
	if err != nil {
		return err
	}

	client := newClient(uuid.NewString(), conn)
	room.Register(client)

	writeDone := make(chan struct{})
	go s.writePump(client, writeDone)
	defer func() {
		// Closing client.Send is what lets writePump drain and exit, so the
		// client must leave the roster before waiting on it.
		room.Unregister(client)
		client.close()
		<-writeDone
		conn.Close()
	}()

	if err := conn.Send(room.WriteSyncStep1()); err != nil {
		return err
	}
	for _, blob := range room.Awareness().Snapshot() {
		if err := conn.Send(wire.CreateAwarenessMessage(blob)); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if onMessage != nil && !onMessage(client.ID, msg) {
			continue
		}
		if err := s.dispatch(room, client, msg); err != nil {
			s.log.Warnf("collab: dropping malformed message from %s: %v", client.ID, err)
		}
	}
}

func (s *Server) dispatch(room *Room, client *Client, msg []byte) error {
	msgType, payload, err := wire.SplitMessage(msg)
	if err != nil {
		return err
	}

	switch msgType {
	case wire.MessageSync:
		res, err := syncproto.HandleSyncMessage(room.Document(), client.ID, msg)
		if err != nil {
			return err
		}
		if res.Reply != nil {
			client.enqueue(res.Reply)
		}
		if res.Applied {
			_, data, err := wire.SplitSyncMessage(payload)
			if err != nil {
				return err
			}
			// Re-wrap as an UPDATE frame regardless of whether the triggering
			// message was itself a SyncUpdate or a SyncStep2 reply: peers must
			// only ever see UPDATE frames on the broadcast path.
			room.PublishUpdate(client.ID, wire.CreateUpdateMessage(data), data)
		}
		return nil
	case wire.MessageAwareness:
		room.Awareness().Set(client.ID, payload)
		room.PublishAwareness(client.ID, msg)
		return nil
	default:
		s.log.Warnf("collab: unknown top-level message type %#x from %s, dropping", msgType, client.ID)
		return nil
	}
}

func (s *Server) writePump(c *Client, done chan struct{}) {
	defer close(done)
	for data := range c.Send {
		if err := c.Conn.Send(data); err != nil {
			return
		}
	}
}
