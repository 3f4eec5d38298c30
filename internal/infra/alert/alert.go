// Package alert formats and delivers monitor notifications. Transport is
// Discord webhooks for chat and PagerDuty for urgent paging; delivery
// failures are logged and dropped so a slow channel never stalls the
// polling loop.
package alert

import "context"

// Severity selects the channel color for a message.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityInfo    Severity = "info"
	SeverityWarn    Severity = "warn"
	SeverityError   Severity = "error"
)

// Message is one human-readable notification.
type Message struct {
	Title    string
	Body     string
	Chain    string
	Location string
	Frontend bool
	// Retrigger switches to the repeat-notification color so an ongoing
	// incident reads differently from a fresh one.
	Retrigger bool
}

// Dispatcher delivers messages to notification channels. Send methods
// report delivery success; they never return errors because the caller has
// nothing useful to do with one beyond logging.
type Dispatcher interface {
	SendSuccess(ctx context.Context, m Message) bool
	SendInfo(ctx context.Context, m Message) bool
	SendWarn(ctx context.Context, m Message) bool
	SendError(ctx context.Context, m Message) bool

	// CreateUrgentIncident opens a paging incident for conditions that
	// need a human immediately.
	CreateUrgentIncident(ctx context.Context, title, details string) error
}

// NopDispatcher swallows all notifications. Used when no channels are
// configured and in tests.
type NopDispatcher struct{}

func (NopDispatcher) SendSuccess(context.Context, Message) bool { return true }
func (NopDispatcher) SendInfo(context.Context, Message) bool    { return true }
func (NopDispatcher) SendWarn(context.Context, Message) bool    { return true }
func (NopDispatcher) SendError(context.Context, Message) bool   { return true }
func (NopDispatcher) CreateUrgentIncident(context.Context, string, string) error {
	return nil
}
