// Package whatsapp adapts the whatsmeow client to the gateway's
// ProtocolClient contract: one instance per tenant, resuming from the
// tenant's cached credential file and emitting normalized events.
package whatsapp

import (
	"fmt"
	"log/slog"

	waLog "go.mau.fi/whatsmeow/util/log"
)

// slogAdapter routes whatsmeow's internal logging through the
// gateway's slog logger.
type slogAdapter struct {
	log *slog.Logger
}

func newWALogger(log *slog.Logger) waLog.Logger {
	return slogAdapter{log: log}
}

func (a slogAdapter) Errorf(msg string, args ...interface{}) { a.log.Error(fmt.Sprintf(msg, args...)) }
func (a slogAdapter) Warnf(msg string, args ...interface{})  { a.log.Warn(fmt.Sprintf(msg, args...)) }
func (a slogAdapter) Infof(msg string, args ...interface{})  { a.log.Info(fmt.Sprintf(msg, args...)) }
func (a slogAdapter) Debugf(msg string, args ...interface{}) { a.log.Debug(fmt.Sprintf(msg, args...)) }

func (a slogAdapter) Sub(module string) waLog.Logger {
	return slogAdapter{log: a.log.With("module", module)}
}
