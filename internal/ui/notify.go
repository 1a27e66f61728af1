package ui

import (
	"github.com/gen2brain/beeep"
	"go.uber.org/zap"
)

const notifyTitle = "stackpilot"

// Notifier sends desktop notifications for session milestones. Delivery
// failures are logged and otherwise ignored; notifications are best-effort.
type Notifier struct {
	enabled bool
	logger  *zap.SugaredLogger
}

// NewNotifier creates a Notifier. When disabled every call is a no-op.
func NewNotifier(enabled bool, logger *zap.SugaredLogger) *Notifier {
	return &Notifier{enabled: enabled, logger: logger}
}

// Ready announces the stack is up.
func (n *Notifier) Ready() {
	n.send("Local stack is ready")
}

// Failed announces startup failure.
func (n *Notifier) Failed(reason string) {
	if reason == "" {
		reason = "unknown error"
	}
	n.send("Startup failed: " + reason)
}

func (n *Notifier) send(message string) {
	if !n.enabled {
		return
	}
	if err := beeep.Notify(notifyTitle, message, ""); err != nil {
		n.logger.Debugw("Desktop notification failed", "error", err)
	}
}
