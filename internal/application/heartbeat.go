package application

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ngoclaw/agentcore/internal/domain/cognition"
)

// Heartbeat periodically ticks the runner with a synthetic observation so
// background goals make progress without external traffic.
type Heartbeat struct {
	runner   *Runner
	interval time.Duration
	logger   *zap.Logger
	stop     chan struct{}
	done     chan struct{}
}

// NewHeartbeat builds a heartbeat; Start launches it.
func NewHeartbeat(runner *Runner, interval time.Duration, logger *zap.Logger) *Heartbeat {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Heartbeat{
		runner:   runner,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the tick loop until Stop is called.
func (h *Heartbeat) Start() {
	go func() {
		defer close(h.done)
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-h.stop:
				return
			case <-ticker.C:
				h.tick()
			}
		}
	}()
}

func (h *Heartbeat) tick() {
	result, err := h.runner.Run(context.Background(), Request{
		Observation: &cognition.Observation{
			Timestamp: time.Now().UnixMilli(),
			State:     map[string]any{"heartbeat": true},
			Events:    []string{"heartbeat"},
		},
	})
	if err != nil {
		h.logger.Warn("heartbeat run rejected", zap.Error(err))
		return
	}
	h.logger.Debug("heartbeat run finished", zap.String("status", string(result.Status)))
}

// Stop halts the loop and waits for the in-flight tick.
func (h *Heartbeat) Stop() {
	close(h.stop)
	<-h.done
}
