package notifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/mauv0809/tourney/internal/tournament"
)

// Negotiation kinds an action can target.
const (
	KindReschedule = "reschedule"
	KindConflict   = "conflict"
)

// Verbs a member can answer with.
const (
	VerbAccept  = "accept"
	VerbDecline = "decline"
	VerbSelect  = "select"
	VerbConfirm = "confirm"
)

// Action is a member's answer to an interactive prompt.
type Action struct {
	Kind  string
	Verb  string
	Ref   string
	Value string
}

// EncodeAction builds the identifier attached to a button or select.
func EncodeAction(kind, verb, ref string) string {
	return kind + ":" + verb + ":" + ref
}

// ParseAction decodes an identifier produced by EncodeAction. value is the
// option picked from a select, if any.
func ParseAction(id, value string) (Action, error) {
	parts := strings.SplitN(id, ":", 3)
	if len(parts) != 3 || parts[2] == "" {
		return Action{}, fmt.Errorf("%w: malformed action %q", tournament.ErrFormat, id)
	}
	a := Action{Kind: parts[0], Verb: parts[1], Ref: parts[2], Value: value}
	switch a.Kind {
	case KindReschedule, KindConflict:
	default:
		return Action{}, fmt.Errorf("%w: unknown action kind %q", tournament.ErrFormat, a.Kind)
	}
	switch a.Verb {
	case VerbAccept, VerbDecline, VerbConfirm:
	case VerbSelect:
		if value == "" {
			return Action{}, fmt.Errorf("%w: select without a value", tournament.ErrFormat)
		}
	default:
		return Action{}, fmt.Errorf("%w: unknown verb %q", tournament.ErrFormat, a.Verb)
	}
	return a, nil
}

// Responder applies member answers. Chat adapters translate raw interaction
// events into Respond calls and show the returned text to the member.
type Responder interface {
	Respond(ctx context.Context, member string, a Action) (string, error)
}
