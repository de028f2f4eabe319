// Package wsbridge contains the WebSocket streaming engine: per-connection
// flow control state, the three scheduler policies, and the bridge that
// hands producer events to the socket's single writer.
//
// Three kinds of goroutine touch a Conn: the socket's read loop (handshake
// and ACK frames), the connection's write pump (all socket writes), and the
// producer goroutines of the messaging runtime (which may block, but only
// in Wait). The write pump never waits on the condition variable - it is
// the only goroutine that can advance ON_DRAIN pacing.
package wsbridge

import (
	"sync"
	"sync/atomic"
)

// State is the shared per-gateway state. It is an explicit dependency of
// every Conn rather than a process global so tests can run several
// gateways side by side.
type State struct {
	// mu and cv implement the producer wait/wake protocol. No user data
	// lives under mu.
	mu sync.Mutex
	cv *sync.Cond

	running atomic.Bool

	regMu  sync.Mutex
	active map[*Conn]struct{}
}

// NewState returns a running gateway state.
func NewState() *State {
	s := &State{active: make(map[*Conn]struct{})}
	s.cv = sync.NewCond(&s.mu)
	s.running.Store(true)
	return s
}

// Running reports whether the gateway is accepting and serving streams.
func (s *State) Running() bool { return s.running.Load() }

// Shutdown stops the gateway: producers blocked in Wait drain immediately
// and every live connection is closed.
func (s *State) Shutdown() {
	s.running.Store(false)
	s.notify()

	s.regMu.Lock()
	conns := make([]*Conn, 0, len(s.active))
	for c := range s.active {
		conns = append(conns, c)
	}
	s.regMu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

// notify broadcasts the wait condition. The lock round trip guarantees a
// waiter between its condition check and cv.Wait still observes the wake.
func (s *State) notify() {
	s.mu.Lock()
	s.cv.Broadcast()
	s.mu.Unlock()
}

func (s *State) add(c *Conn) {
	s.regMu.Lock()
	s.active[c] = struct{}{}
	s.regMu.Unlock()
}

func (s *State) remove(c *Conn) {
	s.regMu.Lock()
	delete(s.active, c)
	s.regMu.Unlock()
}

// ActiveConns reports the number of live connections.
func (s *State) ActiveConns() int {
	s.regMu.Lock()
	defer s.regMu.Unlock()
	return len(s.active)
}
