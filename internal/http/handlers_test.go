package http

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/mauv0809/tourney/internal/access"
	"github.com/mauv0809/tourney/internal/availability"
	"github.com/mauv0809/tourney/internal/clock"
	"github.com/mauv0809/tourney/internal/config"
	"github.com/mauv0809/tourney/internal/export"
	"github.com/mauv0809/tourney/internal/metrics"
	"github.com/mauv0809/tourney/internal/notifier"
	"github.com/mauv0809/tourney/internal/processor"
	"github.com/mauv0809/tourney/internal/pubsub"
	"github.com/mauv0809/tourney/internal/schedule"
	"github.com/mauv0809/tourney/internal/store"
	"github.com/mauv0809/tourney/internal/tournament"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/xuri/excelize/v2"
)

const (
	testSlackSigningSecret = "test-signing-secret"
	testAdminToken         = "s3cret"
)

var weekend = availability.Week{"saturday": "10:00-18:00", "sunday": "10:00-18:00"}

type testServer struct {
	*Server
	notifier *notifier.Mock
	events   *pubsub.MockPubSubClient
}

// setupTestServer wires a server around an in-memory tournament with the given teams registered.
func setupTestServer(t *testing.T, teams ...string) *testServer {
	t.Helper()

	n := notifier.NewMock()
	events := pubsub.NewMock()
	reg := prometheus.NewRegistry()
	metricsSvc := metrics.NewService(reg)
	admins := []string{"organizer"}
	proc := processor.New(
		tournament.NewRepository(store.NewMemory()),
		n, metricsSvc, events,
		clock.NewFake(time.Date(2026, 11, 1, 12, 0, 0, 0, time.UTC)),
		access.Static{"boss": admins},
		processor.Options{
			Rules:           schedule.DefaultRules(),
			RegistrationEnd: time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC),
			TournamentEnd:   time.Date(2026, 11, 15, 0, 0, 0, 0, time.UTC),
			AdminRoles:      admins,
			Seed:            1,
		},
	)
	for _, name := range teams {
		require.NoError(t, proc.RegisterTeam(context.Background(), name, []string{name + "-a", name + "-b"}, weekend.Clone()))
	}
	cfg := config.Config{AdminToken: testAdminToken, Slack: config.SlackConfig{SigningSecret: testSlackSigningSecret}}
	return &testServer{
		Server:   NewServer(proc, n, metricsSvc, metrics.NewMetricsHandler(reg), cfg, events),
		notifier: n,
		events:   events,
	}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.Router.ServeHTTP(rr, req)
	return rr
}

func adminRequest(t *testing.T, method, target string, form url.Values) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, target, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	return req
}

// createSlackInteractionRequest signs a form body the way Slack does.
func createSlackInteractionRequest(t *testing.T, payload any, signingSecret string) *http.Request {
	t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return signedSlackRequest(t, "/slack/interactions", url.Values{"payload": {string(raw)}}, signingSecret)
}

// createSlashCommandRequest builds a signed slash command form post.
func createSlashCommandRequest(t *testing.T, name, user, text, signingSecret string) *http.Request {
	t.Helper()
	form := url.Values{"command": {"/" + name}, "user_id": {user}, "text": {text}}
	return signedSlackRequest(t, "/slack/command/"+name, form, signingSecret)
}

func signedSlackRequest(t *testing.T, target string, form url.Values, signingSecret string) *http.Request {
	t.Helper()
	body := form.Encode()
	req, err := http.NewRequest(http.MethodPost, target, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	timestamp := time.Now().Unix()
	req.Header.Set("X-Slack-Request-Timestamp", strconv.FormatInt(timestamp, 10))
	h := hmac.New(sha256.New, []byte(signingSecret))
	fmt.Fprintf(h, "v0:%d:%s", timestamp, body)
	req.Header.Set("X-Slack-Signature", "v0="+hex.EncodeToString(h.Sum(nil)))
	return req
}

func buttonPayload(user, actionID string) map[string]any {
	return map[string]any{
		"type": "block_actions",
		"user": map[string]string{"id": user},
		"actions": []map[string]string{
			{"action_id": actionID, "block_id": "choices", "type": "button"},
		},
	}
}

func pushRequest(t *testing.T, target string, data any) *http.Request {
	t.Helper()
	packed, err := msgpack.Marshal(data)
	require.NoError(t, err)
	var envelope pushMessage
	envelope.Subscription = "projects/test/subscriptions/sub"
	envelope.Message.Data = base64.StdEncoding.EncodeToString(packed)
	raw, err := json.Marshal(envelope)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, target, bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	return req
}

func TestHealthCheckHandler(t *testing.T) {
	server := setupTestServer(t)

	req, err := http.NewRequest(http.MethodGet, "/health", nil)
	require.NoError(t, err)
	rr := server.do(req)

	assert.Equal(t, http.StatusOK, rr.Code, "handler returned wrong status code")
	assert.Equal(t, "OK!", rr.Body.String(), "handler returned unexpected body")
}

func TestAdminRoutesRequireToken(t *testing.T) {
	server := setupTestServer(t, "A", "B")

	for _, auth := range []string{"", "Bearer wrong", testAdminToken} {
		req, err := http.NewRequest(http.MethodPost, "/admin/close-registration", nil)
		require.NoError(t, err)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		assert.Equal(t, http.StatusUnauthorized, server.do(req).Code, "auth %q", auth)
	}
}

func TestAdminRoutesLockedWithoutConfiguredToken(t *testing.T) {
	server := setupTestServer(t, "A", "B")
	server.Cfg.AdminToken = ""
	server.Router = http.NewServeMux()
	server.routes()

	req, err := http.NewRequest(http.MethodPost, "/admin/close-registration", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer ")
	assert.Equal(t, http.StatusUnauthorized, server.do(req).Code)
}

func TestCloseRegistrationHandler(t *testing.T) {
	server := setupTestServer(t, "A", "B", "C", "D")

	rr := server.do(adminRequest(t, http.MethodPost, "/admin/close-registration", nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var report reportResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.Equal(t, 6, report.Matches)
	assert.Equal(t, 6, report.Assigned)
	assert.Empty(t, report.Unassigned)
	assert.Len(t, server.notifier.Broadcasts(), 1)
	assert.Contains(t, server.events.Topics(), pubsub.EventSchedulePublished)

	rr = server.do(adminRequest(t, http.MethodPost, "/admin/close-registration", nil))
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "error")
}

func TestCloseRegistrationHandler_NotEnoughTeams(t *testing.T) {
	server := setupTestServer(t, "A")

	rr := server.do(adminRequest(t, http.MethodPost, "/admin/close-registration", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestScheduleHandler(t *testing.T) {
	server := setupTestServer(t, "A", "B", "C")
	require.Equal(t, http.StatusOK, server.do(adminRequest(t, http.MethodPost, "/admin/close-registration", nil)).Code)

	t.Run("text", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, "/schedule", nil)
		require.NoError(t, err)
		rr := server.do(req)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "Tournament schedule")
		assert.Contains(t, rr.Body.String(), "#1 A vs B")
	})

	t.Run("json", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, "/schedule?format=json", nil)
		require.NoError(t, err)
		rr := server.do(req)
		require.Equal(t, http.StatusOK, rr.Code)
		var matches []matchResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &matches))
		require.Len(t, matches, 3)
		for _, m := range matches {
			assert.Equal(t, string(tournament.MatchScheduled), m.Status)
			_, err := time.Parse(time.RFC3339, m.ScheduledTime)
			assert.NoError(t, err)
		}
	})
}

func TestExportHandler(t *testing.T) {
	server := setupTestServer(t, "A", "B", "C")
	require.Equal(t, http.StatusOK, server.do(adminRequest(t, http.MethodPost, "/admin/close-registration", nil)).Code)

	req, err := http.NewRequest(http.MethodGet, "/schedule.xlsx", nil)
	require.NoError(t, err)
	rr := server.do(req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "schedule.xlsx")

	f, err := excelize.OpenReader(rr.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(export.ScheduleSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestFreeSlotsHandler(t *testing.T) {
	server := setupTestServer(t, "A", "B", "C", "D")
	require.Equal(t, http.StatusOK, server.do(adminRequest(t, http.MethodPost, "/admin/close-registration", nil)).Code)

	req, err := http.NewRequest(http.MethodGet, "/free-slots", nil)
	require.NoError(t, err)
	rr := server.do(req)
	require.Equal(t, http.StatusOK, rr.Code)
	var slots []string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &slots))
	assert.Len(t, slots, 2)
}

func TestExcludeTeamHandler(t *testing.T) {
	server := setupTestServer(t, "A", "B", "C")
	require.Equal(t, http.StatusOK, server.do(adminRequest(t, http.MethodPost, "/admin/close-registration", nil)).Code)

	tests := []struct {
		name string
		form url.Values
		code int
	}{
		{"missing team", url.Values{"actor": {"boss"}}, http.StatusBadRequest},
		{"not an admin", url.Values{"actor": {"A-a"}, "team": {"C"}}, http.StatusForbidden},
		{"unknown team", url.Values{"actor": {"boss"}, "team": {"Q"}}, http.StatusNotFound},
		{"excluded", url.Values{"actor": {"boss"}, "team": {"C"}}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := server.do(adminRequest(t, http.MethodPost, "/admin/teams/exclude", tt.form))
			assert.Equal(t, tt.code, rr.Code, rr.Body.String())
		})
	}
	assert.Contains(t, server.events.Topics(), pubsub.EventTeamExcluded)
	st, err := server.Processor.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, tournament.TeamExcluded, st.Team("C").Status)
}

func TestResetRescheduleHandler(t *testing.T) {
	server := setupTestServer(t, "A", "B")
	require.Equal(t, http.StatusOK, server.do(adminRequest(t, http.MethodPost, "/admin/close-registration", nil)).Code)

	rr := server.do(adminRequest(t, http.MethodPost, "/admin/reschedule/reset", url.Values{"actor": {"boss"}, "match": {"x"}}))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = server.do(adminRequest(t, http.MethodPost, "/admin/reschedule/reset", url.Values{"actor": {"boss"}, "match": {"1"}}))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "No reschedule was pending for match #1.", rr.Body.String())
}

func TestSlackInteractionHandler(t *testing.T) {
	ctx := context.Background()
	server := setupTestServer(t, "A", "B", "C", "D")
	require.Equal(t, http.StatusOK, server.do(adminRequest(t, http.MethodPost, "/admin/close-registration", nil)).Code)

	free, err := server.Processor.FreeSlots(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, free)
	_, err = server.Processor.RequestReschedule(ctx, "A-a", 1, free[0].Format("02.01.2006 15:04"))
	require.NoError(t, err)
	req, ok := server.Processor.Negotiator().Lookup(1)
	require.True(t, ok)
	accept := notifier.EncodeAction(notifier.KindReschedule, notifier.VerbAccept, req.ID)

	t.Run("rejects a bad signature", func(t *testing.T) {
		rr := server.do(createSlackInteractionRequest(t, buttonPayload("A-a", accept), "wrong-secret"))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("records a vote", func(t *testing.T) {
		rr := server.do(createSlackInteractionRequest(t, buttonPayload("A-a", accept), testSlackSigningSecret))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "Waiting for the other players")
		assert.Contains(t, rr.Body.String(), "ephemeral")
	})

	t.Run("domain errors become replies", func(t *testing.T) {
		rr := server.do(createSlackInteractionRequest(t, buttonPayload("nobody", accept), testSlackSigningSecret))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "Sorry")
	})

	t.Run("malformed action", func(t *testing.T) {
		rr := server.do(createSlackInteractionRequest(t, buttonPayload("A-a", "nonsense"), testSlackSigningSecret))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "not supported")
	})
}

func TestSlackCommandHandler(t *testing.T) {
	server := setupTestServer(t)

	tests := []struct {
		name    string
		command string
		user    string
		text    string
		secret  string
		code    int
		reply   string
	}{
		{"bad signature", "join", "U1", "", "wrong-secret", http.StatusUnauthorized, ""},
		{"join as team", "join", "U1", "Red Team <@U2|bob>", testSlackSigningSecret, http.StatusOK, "Team Red Team is registered."},
		{"join solo", "join", "U3", "", testSlackSigningSecret, http.StatusOK, "solo pool"},
		{"availability", "availability", "U2", "saturday 10:00-14:00", testSlackSigningSecret, http.StatusOK, "Availability for saturday set to 10:00-14:00."},
		{"blocked date", "availability", "U1", "2026-11-07", testSlackSigningSecret, http.StatusOK, "not available on 2026-11-07"},
		{"bad reschedule", "reschedule", "U1", "soon", testSlackSigningSecret, http.StatusOK, "Sorry"},
		{"leave", "leave", "U3", "", testSlackSigningSecret, http.StatusOK, "You left the tournament."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := server.do(createSlashCommandRequest(t, tt.command, tt.user, tt.text, tt.secret))
			require.Equal(t, tt.code, rr.Code, rr.Body.String())
			if tt.reply != "" {
				assert.Contains(t, rr.Body.String(), tt.reply)
				assert.Contains(t, rr.Body.String(), "ephemeral")
			}
		})
	}

	st, err := server.Processor.Snapshot(context.Background())
	require.NoError(t, err)
	team := st.Team("Red Team")
	require.NotNil(t, team)
	assert.Equal(t, []string{"U1", "U2"}, team.Members)
	assert.Equal(t, "10:00-14:00", team.Availability["saturday"])
	assert.Equal(t, []string{"2026-11-07"}, team.UnavailableDates)
	assert.Empty(t, st.Solos)

	req, err := http.NewRequest(http.MethodPost, "/slack/command/leaderboard", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, server.do(req).Code)
}

func TestMatchForfeitedHandler(t *testing.T) {
	server := setupTestServer(t)

	rr := server.do(pushRequest(t, "/pubsub/match-forfeited", pubsub.MatchForfeited{MatchID: 3, ForfeitBy: "B", Winner: "A"}))
	require.Equal(t, http.StatusOK, rr.Code)
	broadcasts := server.notifier.Broadcasts()
	require.Len(t, broadcasts, 1)
	assert.Equal(t, "Match #3: A wins by forfeit.", broadcasts[0].Body)

	rr = server.do(pushRequest(t, "/pubsub/match-forfeited?dry_run=true", pubsub.MatchForfeited{MatchID: 4, ForfeitBy: "B"}))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, server.notifier.Broadcasts(), 1)
}

func TestTeamExcludedHandler(t *testing.T) {
	server := setupTestServer(t, "A", "B", "C")

	// Registration is still open, so nothing is regenerated.
	rr := server.do(pushRequest(t, "/pubsub/team-excluded", pubsub.TeamExcluded{Team: "C", Reason: "no_show"}))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, server.notifier.Broadcasts())

	require.Equal(t, http.StatusOK, server.do(adminRequest(t, http.MethodPost, "/admin/close-registration", nil)).Code)
	rr = server.do(pushRequest(t, "/pubsub/team-excluded", pubsub.TeamExcluded{Team: "C", Reason: "no_show"}))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, server.notifier.Broadcasts(), 2, "regeneration publishes the schedule again")

	bad, err := http.NewRequest(http.MethodPost, "/pubsub/team-excluded", strings.NewReader("{nope"))
	require.NoError(t, err)
	bad.Header.Set("Authorization", "Bearer "+testAdminToken)
	assert.Equal(t, http.StatusBadRequest, server.do(bad).Code)
}
