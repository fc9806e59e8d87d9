package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestProcessMessage_DecodesMsgpack(t *testing.T) {
	at := time.Date(2026, 11, 7, 14, 0, 0, 0, time.UTC)
	want := MatchRescheduled{MatchID: 5, From: at, To: at.Add(2 * time.Hour)}
	data, err := msgpack.Marshal(want)
	require.NoError(t, err)

	var got MatchRescheduled
	require.NoError(t, NewNop().ProcessMessage(data, &got))
	assert.Equal(t, 5, got.MatchID)
	assert.True(t, want.To.Equal(got.To))
}

func TestNop_SendMessage(t *testing.T) {
	assert.NoError(t, NewNop().SendMessage(context.Background(), EventTeamExcluded, TeamExcluded{Team: "x"}))
}

func TestMock_RecordsTopics(t *testing.T) {
	m := NewMock()
	require.NoError(t, m.SendMessage(context.Background(), EventMatchForfeited, MatchForfeited{MatchID: 1}))
	require.NoError(t, m.SendMessage(context.Background(), EventSchedulePublished, SchedulePublished{}))
	assert.Equal(t, []EventType{EventMatchForfeited, EventSchedulePublished}, m.Topics())
	m.Reset()
	assert.Empty(t, m.Topics())
}
