package dist

import (
	"sync"

	"github.com/nspcc-dev/clusterlink/pkg/registry"
)

// outboundQueueCapacity bounds the per-session outbound command queue.
// A slow or wedged peer should exert backpressure on its own queue, not
// on every other peer, so each session gets its own bounded channel
// rather than sharing one across the process.
const outboundQueueCapacity = 256

// session is the peer-facing facade a Connection exposes to the
// registry (spec.md §4.6): a stable identity once known, a non-blocking
// outbound enqueue, and a close signal. It never exposes the socket.
type session struct {
	id string

	mu       sync.RWMutex
	peerName string

	outbound chan registry.Command
	closeFn  func()
	closed   chan struct{}
	closeOnce sync.Once
}

func newSession(id string, closeFn func()) *session {
	return &session{
		id:       id,
		outbound: make(chan registry.Command, outboundQueueCapacity),
		closeFn:  closeFn,
		closed:   make(chan struct{}),
	}
}

// setPeerName is called once the NAME packet has been parsed.
func (s *session) setPeerName(name string) {
	s.mu.Lock()
	s.peerName = name
	s.mu.Unlock()
}

// PeerName implements registry.Session.
func (s *session) PeerName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peerName
}

// Enqueue implements registry.Session. It never blocks: a full queue or
// an already-closed session rejects the command, leaving backpressure
// and redelivery decisions to the registry.
func (s *session) Enqueue(cmd registry.Command) bool {
	select {
	case <-s.closed:
		return false
	default:
	}
	select {
	case s.outbound <- cmd:
		return true
	default:
		return false
	}
}

// Close implements registry.Session.
func (s *session) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		if s.closeFn != nil {
			s.closeFn()
		}
	})
}

// drain discards every command still queued, called once the underlying
// socket has gone away (spec.md §5's cancellation policy).
func (s *session) drain() {
	for {
		select {
		case <-s.outbound:
		default:
			return
		}
	}
}
