package notifier

import (
	"context"
	"errors"
	"testing"

	"github.com/mauv0809/tourney/internal/metrics"
	"github.com/mauv0809/tourney/internal/tournament"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	unreachable  map[string]bool
	channelDown  bool
	direct       []string
	channelPosts []Prompt
}

func (f *fakeTransport) SendDirect(ctx context.Context, userID string, p Prompt) error {
	if f.unreachable[userID] {
		return errors.New("dm closed")
	}
	f.direct = append(f.direct, userID)
	return nil
}

func (f *fakeTransport) SendChannel(ctx context.Context, p Prompt) error {
	if f.channelDown {
		return errors.New("channel gone")
	}
	f.channelPosts = append(f.channelPosts, p)
	return nil
}

func TestFanout_DirectOnly(t *testing.T) {
	tr := &fakeTransport{}
	m := metrics.NewMock()
	f := NewFanout(tr, m, nil)

	d, err := f.Notify(context.Background(), []string{"u1", "u2"}, Prompt{Title: "hi"})
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, d.Delivered)
	assert.False(t, d.Broadcast)
	assert.Empty(t, tr.channelPosts)
	assert.Equal(t, 2, m.NotificationsSent())
}

func TestFanout_FallsBackToBroadcast(t *testing.T) {
	tr := &fakeTransport{unreachable: map[string]bool{"u2": true, "u3": true}}
	m := metrics.NewMock()
	f := NewFanout(tr, m, func(id string) string { return "<@" + id + ">" })

	d, err := f.Notify(context.Background(), []string{"u1", "u2", "u3"}, Prompt{Title: "vote", Body: "please answer"})
	require.NoError(t, err)
	assert.Equal(t, []string{"u2", "u3"}, d.Failed)
	assert.True(t, d.Broadcast)
	require.Len(t, tr.channelPosts, 1, "one broadcast covers every failed recipient")
	assert.Contains(t, tr.channelPosts[0].Body, "<@u2> <@u3>")
	assert.Contains(t, tr.channelPosts[0].Body, "please answer")
	assert.Equal(t, 2, m.NotificationsFailed())
}

func TestFanout_Undelivered(t *testing.T) {
	tr := &fakeTransport{unreachable: map[string]bool{"u1": true}, channelDown: true}
	f := NewFanout(tr, metrics.NewMock(), nil)

	_, err := f.Notify(context.Background(), []string{"u1"}, Prompt{})
	assert.ErrorIs(t, err, ErrUndelivered)
}

func TestParseAction(t *testing.T) {
	id := EncodeAction(KindReschedule, VerbAccept, "5")
	a, err := ParseAction(id, "")
	require.NoError(t, err)
	assert.Equal(t, Action{Kind: KindReschedule, Verb: VerbAccept, Ref: "5"}, a)

	a, err = ParseAction(EncodeAction(KindConflict, VerbSelect, "3"), "1794146400")
	require.NoError(t, err)
	assert.Equal(t, "1794146400", a.Value)

	for _, bad := range []string{"", "reschedule:accept", "foo:accept:1", "conflict:shout:1", "conflict:accept:"} {
		_, err := ParseAction(bad, "")
		assert.ErrorIs(t, err, tournament.ErrFormat, bad)
	}
	_, err = ParseAction(EncodeAction(KindConflict, VerbSelect, "3"), "")
	assert.ErrorIs(t, err, tournament.ErrFormat)
}

func TestParseCommand(t *testing.T) {
	cmd, err := ParseCommand(CommandJoin, "U1", "  Red  Team <@U2|bob> ")
	require.NoError(t, err)
	assert.Equal(t, Command{Name: CommandJoin, Member: "U1", Args: []string{"Red", "Team", "U2"}}, cmd)

	cmd, err = ParseCommand(CommandLeave, "U1", "")
	require.NoError(t, err)
	assert.Empty(t, cmd.Args)

	cmd, err = ParseCommand(CommandJoin, "U1", "Duo <@!U3> <@broken")
	require.NoError(t, err)
	assert.Equal(t, []string{"Duo", "U3", "<@broken"}, cmd.Args)

	_, err = ParseCommand("leaderboard", "U1", "")
	assert.ErrorIs(t, err, tournament.ErrFormat)
	_, err = ParseCommand(CommandLeave, "", "")
	assert.ErrorIs(t, err, tournament.ErrFormat)
}
