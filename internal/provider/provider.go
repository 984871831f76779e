// Package provider implements the client side of the sync handshake: given
// a local document and a connection to a room, it performs the opening
// SyncStep1/SyncStep2 exchange and then relays the local document's
// after-apply updates to the peer for as long as the connection is open.
// It mirrors ypy_websocket's WebsocketProvider, re-expressed with
// goroutines and channels in place of anyio task groups and memory object
// streams.
package provider

import (
	"context"
	"sync"

	"github.com/collabdocs/yroomd/internal/logger"
	"github.com/collabdocs/yroomd/internal/syncproto"
	"github.com/collabdocs/yroomd/internal/wire"
	"github.com/collabdocs/yroomd/internal/ydoc"
)

// Conn is the minimal transport this provider drives.
type Conn interface {
	ReadMessage() ([]byte, error)
	Send([]byte) error
	Close() error
}

// Provider drives the client side of one document's connection to a room.
type Provider struct {
	doc  *ydoc.Document
	conn Conn
	log  *logger.Logger

	outbound chan []byte

	mu      sync.Mutex
	started bool
}

// New returns a Provider for doc over conn. Run must be called to start the
// handshake and the update relay.
func New(doc *ydoc.Document, conn Conn, log *logger.Logger) *Provider {
	if log == nil {
		log = logger.Default()
	}
	return &Provider{doc: doc, conn: conn, log: log, outbound: make(chan []byte, 65536)}
}

// Run performs the opening handshake and then blocks, relaying local
// updates out and remote messages in, until a read from the connection
// fails or ctx is found cancelled. ctx is checked between reads, so a
// cancellation takes effect once the pending read returns. It registers the document's after-apply hook exactly
// once, so Run must not be called twice on the same Provider.
func (p *Provider) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return errAlreadyRunning
	}
	p.started = true
	p.mu.Unlock()

	p.doc.OnUpdate(func(update []byte) {
		select {
		case p.outbound <- wire.CreateUpdateMessage(update):
		default:
			p.log.Warnf("provider: outbound buffer full, dropping local update")
		}
	})

	if err := p.conn.Send(syncproto.WriteSyncStep1(p.doc)); err != nil {
		return err
	}

	done := make(chan struct{})
	defer close(done)
	go p.sendLoop(done)

	for {
		select {
		case <-ctx.Done():
			p.conn.Close()
			return ctx.Err()
		default:
		}

		msg, err := p.conn.ReadMessage()
		if err != nil {
			return err
		}
		msgType, _, err := wire.SplitMessage(msg)
		if err != nil {
			p.log.Warnf("provider: dropping malformed frame: %v", err)
			continue
		}
		if msgType != wire.MessageSync {
			continue
		}
		res, err := syncproto.HandleSyncMessage(p.doc, "", msg)
		if err != nil {
			p.log.Warnf("provider: dropping malformed sync message: %v", err)
			continue
		}
		if res.Reply != nil {
			if err := p.conn.Send(res.Reply); err != nil {
				return err
			}
		}
	}
}

func (p *Provider) sendLoop(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case msg := <-p.outbound:
			if err := p.conn.Send(msg); err != nil {
				p.log.Warnf("provider: send failed, dropping local update: %v", err)
			}
		}
	}
}

type providerError string

func (e providerError) Error() string { return string(e) }

const errAlreadyRunning = providerError("provider: Run already called")
