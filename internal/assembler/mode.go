package assembler

import (
	"fmt"
	"strings"
)

// NotificationMode selects how a completed message is published.
type NotificationMode int

const (
	// NotifyOnly queues the message and signals completion without payload.
	NotifyOnly NotificationMode = iota
	// Dispatch queues the message and hands it to the observer.
	Dispatch
	// DispatchAndDiscard hands the message to the observer and never queues it.
	DispatchAndDiscard
	// NotifyAndDispatch queues the message, signals completion and hands it
	// to the observer.
	NotifyAndDispatch
)

func (m NotificationMode) String() string {
	switch m {
	case NotifyOnly:
		return "notify"
	case Dispatch:
		return "dispatch"
	case DispatchAndDiscard:
		return "dispatch_discard"
	case NotifyAndDispatch:
		return "notify_dispatch"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Queues reports whether completed messages land in the pending queue.
func (m NotificationMode) Queues() bool {
	return m != DispatchAndDiscard
}

func ParseNotificationMode(raw string) (NotificationMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "notify", "notify_only":
		return NotifyOnly, nil
	case "dispatch":
		return Dispatch, nil
	case "dispatch_discard", "dispatch_and_discard", "dispatch_delete":
		return DispatchAndDiscard, nil
	case "notify_dispatch", "notify_and_dispatch":
		return NotifyAndDispatch, nil
	default:
		return NotifyOnly, fmt.Errorf("assembler: unknown notification mode %q", raw)
	}
}
