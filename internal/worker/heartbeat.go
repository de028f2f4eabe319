// internal/worker/heartbeat.go
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/alephzero/api/internal/alephzero"
)

// HeartbeatPath is the registry path liveness packets are written to.
const HeartbeatPath = "api/heartbeat.a0"

// Heartbeat periodically writes a liveness packet so other processes can
// tell the gateway is up.
type Heartbeat struct {
	writer   *alephzero.Writer
	interval time.Duration
	logger   *slog.Logger
}

func NewHeartbeat(rt *alephzero.Runtime, logger *slog.Logger) *Heartbeat {
	return &Heartbeat{
		writer:   rt.NewWriter(HeartbeatPath, true),
		interval: time.Second,
		logger:   logger,
	}
}

// Start runs the heartbeat loop until the context is cancelled.
func (h *Heartbeat) Start(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.writer.Write(alephzero.NewPacket(nil, []byte("alive")))
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("heartbeat stopped")
			return
		case <-ticker.C:
			h.writer.Write(alephzero.NewPacket(nil, []byte("alive")))
		}
	}
}
