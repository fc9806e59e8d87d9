package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/tourney/internal/metrics"
)

// ErrUndelivered is returned when neither a direct message nor the broadcast fallback reached anyone.
var ErrUndelivered = errors.New("notification undelivered")

// Choice is one button of an interactive prompt. ID is an encoded Action.
type Choice struct {
	ID     string
	Label  string
	Danger bool
}

// Select is a drop-down of choices. ID is an encoded Action; the chosen
// option ID is sent back as the action value.
type Select struct {
	ID          string
	Placeholder string
	Options     []Choice
}

// Prompt is a provider-independent message with optional interactive parts.
type Prompt struct {
	Title   string
	Body    string
	Choices []Choice
	Select  *Select
}

// Interactive reports whether the prompt expects a response.
func (p Prompt) Interactive() bool {
	return len(p.Choices) > 0 || p.Select != nil
}

// Delivery reports who a prompt reached.
type Delivery struct {
	Delivered []string
	Failed    []string
	Broadcast bool
}

// Notifier delivers prompts to tournament members.
type Notifier interface {
	// Notify sends the prompt to every recipient directly. Recipients that cannot
	// be reached are covered by one broadcast to the shared channel.
	Notify(ctx context.Context, recipients []string, p Prompt) (Delivery, error)
	// Broadcast posts the prompt to the shared channel.
	Broadcast(ctx context.Context, p Prompt) error
}

// Transport is a chat provider able to send direct and channel messages.
type Transport interface {
	SendDirect(ctx context.Context, userID string, p Prompt) error
	SendChannel(ctx context.Context, p Prompt) error
}

// Fanout implements Notifier on top of a Transport.
type Fanout struct {
	transport Transport
	metrics   metrics.Metrics
	mention   func(userID string) string
}

var _ Notifier = (*Fanout)(nil)

// NewFanout creates a Fanout. mention formats a user reference for the
// broadcast fallback; nil leaves user IDs as they are.
func NewFanout(transport Transport, metrics metrics.Metrics, mention func(string) string) *Fanout {
	if mention == nil {
		mention = func(id string) string { return id }
	}
	return &Fanout{transport: transport, metrics: metrics, mention: mention}
}

func (f *Fanout) Notify(ctx context.Context, recipients []string, p Prompt) (Delivery, error) {
	var d Delivery
	for _, r := range recipients {
		if err := f.transport.SendDirect(ctx, r, p); err != nil {
			f.metrics.IncNotificationFailed()
			log.Warn("Direct message failed, will broadcast", "recipient", r, "error", err)
			d.Failed = append(d.Failed, r)
			continue
		}
		f.metrics.IncNotificationSent()
		d.Delivered = append(d.Delivered, r)
	}
	if len(d.Failed) == 0 {
		return d, nil
	}

	mentions := make([]string, 0, len(d.Failed))
	for _, r := range d.Failed {
		mentions = append(mentions, f.mention(r))
	}
	fallback := p
	fallback.Body = fmt.Sprintf("%s\n\n%s", strings.Join(mentions, " "), p.Body)
	if err := f.Broadcast(ctx, fallback); err != nil {
		if len(d.Delivered) == 0 {
			return d, fmt.Errorf("%w: %v", ErrUndelivered, err)
		}
		return d, nil
	}
	d.Broadcast = true
	return d, nil
}

func (f *Fanout) Broadcast(ctx context.Context, p Prompt) error {
	if err := f.transport.SendChannel(ctx, p); err != nil {
		f.metrics.IncNotificationFailed()
		log.Error("Failed to broadcast message", "title", p.Title, "error", err)
		return fmt.Errorf("failed to broadcast message: %w", err)
	}
	f.metrics.IncNotificationSent()
	return nil
}

// Log is a Notifier that only writes prompts to the log. It is used when no
// chat provider is configured.
type Log struct{}

var _ Notifier = Log{}

func (Log) Notify(ctx context.Context, recipients []string, p Prompt) (Delivery, error) {
	log.Info("Notify", "recipients", recipients, "title", p.Title, "body", p.Body)
	return Delivery{Delivered: recipients}, nil
}

func (Log) Broadcast(ctx context.Context, p Prompt) error {
	log.Info("Broadcast", "title", p.Title, "body", p.Body)
	return nil
}
