package wsbridge

import "github.com/alephzero/api/internal/alephzero"

// Scheduler is the per-connection flow control policy coupling the
// producer's rate to the socket.
type Scheduler int

const (
	// SchedImmediate never blocks the producer; the socket buffer is the
	// only limit.
	SchedImmediate Scheduler = iota
	// SchedOnAck paces the producer on client "ACK" frames.
	SchedOnAck
	// SchedOnDrain paces the producer on the socket's drain.
	SchedOnDrain
)

// SchedulerOptions maps handshake values to schedulers.
func SchedulerOptions() map[string]Scheduler {
	return map[string]Scheduler{
		"IMMEDIATE": SchedImmediate,
		"ON_ACK":    SchedOnAck,
		"ON_DRAIN":  SchedOnDrain,
	}
}

// InitOptions maps handshake values to reader start positions.
func InitOptions() map[string]alephzero.Init {
	return map[string]alephzero.Init{
		"OLDEST":      alephzero.InitOldest,
		"MOST_RECENT": alephzero.InitMostRecent,
		"AWAIT_NEW":   alephzero.InitAwaitNew,
	}
}

// IterOptions maps handshake values to reader iteration modes.
func IterOptions() map[string]alephzero.Iter {
	return map[string]alephzero.Iter{
		"NEXT":   alephzero.IterNext,
		"NEWEST": alephzero.IterNewest,
	}
}
