package gatewaymcp

import (
	"context"

	"go.uber.org/zap"

	"github.com/redwire/redwire/internal/logging"
)

// zapHook bridges the Logging Pipeline's side channel to the gateway's
// structured logger, so a step the pipeline swallowed (to keep it off the
// HTTP Executor's critical path) still surfaces as a log line an operator
// can alert on.
type zapHook struct {
	log *zap.Logger
}

// newZapHook returns a logging.Hook that logs every pipeline Event.
func newZapHook(log *zap.Logger) *zapHook {
	return &zapHook{log: log}
}

// OnEvent logs ev at warn level if it carries an error, debug otherwise.
func (h *zapHook) OnEvent(_ context.Context, ev logging.Event) {
	fields := []zap.Field{
		zap.String("step", ev.Step),
		zap.String("request_id", ev.RequestID),
		zap.Time("at", ev.At),
	}
	if ev.Err != nil {
		h.log.Warn("pipeline step failed", append(fields, zap.Error(ev.Err))...)
		return
	}
	h.log.Debug("pipeline step", fields...)
}
