package http

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/tourney/internal/export"
	"github.com/mauv0809/tourney/internal/notifier"
	slacknotifier "github.com/mauv0809/tourney/internal/notifier/slack"
	"github.com/mauv0809/tourney/internal/processor"
	"github.com/mauv0809/tourney/internal/pubsub"
	"github.com/mauv0809/tourney/internal/schedule"
	"github.com/mauv0809/tourney/internal/tournament"
	"github.com/slack-go/slack"
)

func (s *Server) HealthCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debug("Received health check request")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK!")
	}
}

// ScheduleHandler renders the schedule as text, or as JSON with format=json.
func (s *Server) ScheduleHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := s.Processor.Snapshot(r.Context())
		if err != nil {
			respondWithError(w, err)
			return
		}
		if r.URL.Query().Get("format") != "json" {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			fmt.Fprint(w, schedule.Overview(st, s.Processor.Location()))
			return
		}
		out := make([]matchResponse, 0, len(st.Matches))
		for _, m := range st.Matches {
			mr := matchResponse{
				ID:             m.ID,
				Team1:          m.Team1,
				Team2:          m.Team2,
				Status:         string(m.Status),
				RescueAssigned: m.RescueAssigned,
				Winner:         m.Winner,
				ForfeitBy:      m.ForfeitBy,
				Reschedule:     m.Reschedule != nil,
			}
			if m.ScheduledTime != nil {
				mr.ScheduledTime = m.ScheduledTime.Format(time.RFC3339)
			}
			out = append(out, mr)
		}
		respondWithJSON(w, http.StatusOK, out)
	}
}

func (s *Server) ExportHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := s.Processor.Snapshot(r.Context())
		if err != nil {
			respondWithError(w, err)
			return
		}
		f, err := export.Generate(st, s.Processor.Location())
		if err != nil {
			log.Error("Failed to build workbook", "error", err)
			http.Error(w, "Failed to build workbook", http.StatusInternalServerError)
			return
		}
		defer f.Close()
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="schedule.xlsx"`)
		if err := f.Write(w); err != nil {
			log.Error("Failed to write workbook", "error", err)
		}
	}
}

func (s *Server) FreeSlotsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slots, err := s.Processor.FreeSlots(r.Context())
		if err != nil {
			respondWithError(w, err)
			return
		}
		out := make([]string, 0, len(slots))
		for _, slot := range slots {
			out = append(out, slot.In(s.Processor.Location()).Format(time.RFC3339))
		}
		respondWithJSON(w, http.StatusOK, out)
	}
}

func (s *Server) CloseRegistrationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := s.Processor.CloseRegistration(r.Context())
		if err != nil {
			respondWithError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, toReport(report))
	}
}

func (s *Server) RegenerateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := s.Processor.Regenerate(r.Context())
		if err != nil {
			respondWithError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, toReport(report))
	}
}

func (s *Server) DetectConflictsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := s.Processor.DetectConflicts(r.Context())
		if err != nil {
			respondWithError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, map[string]int{"started": n})
	}
}

func (s *Server) CancelConflictHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		matchID, err := matchParam(r)
		if err != nil {
			respondWithError(w, err)
			return
		}
		if err := s.Processor.CancelConflict(r.Context(), r.FormValue("actor"), matchID); err != nil {
			respondWithError(w, err)
			return
		}
		fmt.Fprintf(w, "Conflict negotiation for match #%d cancelled.", matchID)
	}
}

func (s *Server) ResetRescheduleHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		matchID, err := matchParam(r)
		if err != nil {
			respondWithError(w, err)
			return
		}
		reply, err := s.Processor.ResetReschedule(r.Context(), r.FormValue("actor"), matchID)
		if err != nil {
			respondWithError(w, err)
			return
		}
		fmt.Fprint(w, reply)
	}
}

func (s *Server) ExcludeTeamHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		team := r.FormValue("team")
		if team == "" {
			respondWithError(w, fmt.Errorf("%w: team is required", tournament.ErrFormat))
			return
		}
		forfeited, err := s.Processor.Exclude(r.Context(), r.FormValue("actor"), team, r.FormValue("reason"))
		if err != nil {
			respondWithError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, map[string]any{"team": team, "forfeited": forfeited})
	}
}

// SlackInteractionHandler verifies and applies block action payloads. Slack
// expects a 200 for every verified request, so domain errors become replies.
func (s *Server) SlackInteractionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := s.verifySlack(w, r)
		if !ok {
			return
		}

		form, err := url.ParseQuery(string(body))
		if err != nil {
			http.Error(w, "Error parsing form", http.StatusBadRequest)
			return
		}
		var cb slack.InteractionCallback
		if err := json.Unmarshal([]byte(form.Get("payload")), &cb); err != nil {
			log.Error("Failed to unmarshal interaction payload", "error", err)
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		member, action, err := slacknotifier.ActionFromCallback(cb)
		if err != nil {
			log.Warn("Ignoring interaction", "error", err)
			respondWithSlackMsg(w, ephemeral("That button is not supported."))
			return
		}
		reply, err := s.Processor.Respond(r.Context(), member, action)
		if err != nil {
			log.Warn("Action rejected", "member", member, "action", action.Kind+":"+action.Verb, "error", err)
			reply = "Sorry, that did not work: " + err.Error()
		}
		respondWithSlackMsg(w, ephemeral(reply))
	}
}

// SlackCommandHandler runs the slash command name for the calling member and
// answers ephemerally.
func (s *Server) SlackCommandHandler(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := s.verifySlack(w, r)
		if !ok {
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		sc, err := slack.SlashCommandParse(r)
		if err != nil {
			log.Error("Failed to parse slash command", "error", err)
			http.Error(w, "Error parsing form", http.StatusBadRequest)
			return
		}
		log.Info("Received slash command", "command", sc.Command, "user", sc.UserID, "text", sc.Text)

		cmd, err := notifier.ParseCommand(name, sc.UserID, sc.Text)
		if err != nil {
			respondWithSlackMsg(w, ephemeral("That command is not supported."))
			return
		}
		reply, err := s.Processor.Run(r.Context(), cmd)
		if err != nil {
			log.Warn("Command rejected", "command", name, "member", sc.UserID, "error", err)
			reply = "Sorry, that did not work: " + err.Error()
		}
		respondWithSlackMsg(w, ephemeral(reply))
	}
}

// verifySlack checks the request signature and returns the raw body.
func (s *Server) verifySlack(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("Failed to read request body", "error", err)
		http.Error(w, "Failed to read request body", http.StatusInternalServerError)
		return nil, false
	}
	verifier, err := slack.NewSecretsVerifier(r.Header, s.Cfg.Slack.SigningSecret)
	if err != nil {
		log.Warn("Failed to create slack verifier", "error", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	if _, err := verifier.Write(body); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	if err := verifier.Ensure(); err != nil {
		log.Warn("Slack signature mismatch", "error", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	return body, true
}

// TeamExcludedHandler regenerates the schedule after a team left the field.
// With dry_run the event is only decoded.
func (s *Server) TeamExcludedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ev pubsub.TeamExcluded
		if !s.decodePush(w, r, &ev) {
			return
		}
		log.Info("Received team exclusion", "team", ev.Team, "reason", ev.Reason)
		if isDryRunFromContext(r) {
			w.Write([]byte("OK"))
			return
		}
		if _, err := s.Processor.Regenerate(r.Context()); err != nil {
			if errors.Is(err, tournament.ErrInvariant) || errors.Is(err, tournament.ErrCapacity) {
				log.Warn("Skipped regeneration after exclusion", "team", ev.Team, "error", err)
				w.Write([]byte("OK"))
				return
			}
			respondWithError(w, err)
			return
		}
		w.Write([]byte("OK"))
	}
}

// MatchForfeitedHandler announces a forfeit on the shared channel.
func (s *Server) MatchForfeitedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ev pubsub.MatchForfeited
		if !s.decodePush(w, r, &ev) {
			return
		}
		body := fmt.Sprintf("Match #%d is forfeited by %s.", ev.MatchID, ev.ForfeitBy)
		if ev.Winner != "" {
			body = fmt.Sprintf("Match #%d: %s wins by forfeit.", ev.MatchID, ev.Winner)
		}
		if !isDryRunFromContext(r) {
			if err := s.Notifier.Broadcast(r.Context(), notifier.Prompt{Title: "Forfeit", Body: body}); err != nil {
				log.Error("Failed to announce forfeit", "matchID", ev.MatchID, "error", err)
				http.Error(w, "Failed to announce forfeit", http.StatusInternalServerError)
				return
			}
		}
		w.Write([]byte("OK"))
	}
}

func (s *Server) decodePush(w http.ResponseWriter, r *http.Request, out any) bool {
	bodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("Failed to read request body", "error", err)
		http.Error(w, "Failed to read request body", http.StatusInternalServerError)
		return false
	}
	var msg pushMessage
	if err := json.Unmarshal(bodyBytes, &msg); err != nil {
		log.Error("Failed to unmarshal wrapper JSON", "error", err)
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return false
	}
	rawData, err := base64.StdEncoding.DecodeString(msg.Message.Data)
	if err != nil {
		log.Error("Failed to decode base64 data", "error", err)
		http.Error(w, "Invalid base64 data", http.StatusBadRequest)
		return false
	}
	if err := s.pubsub.ProcessMessage(rawData, out); err != nil {
		http.Error(w, "Invalid message", http.StatusBadRequest)
		return false
	}
	return true
}

func matchParam(r *http.Request) (int, error) {
	raw := r.FormValue("match")
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid match id %q", tournament.ErrFormat, raw)
	}
	return id, nil
}

func toReport(r *processor.Report) reportResponse {
	return reportResponse{
		Formed:     r.Formed,
		Dissolved:  r.Dissolved,
		Matches:    r.Matches,
		Assigned:   r.Assigned,
		Rescued:    r.Rescued,
		Unassigned: r.Unassigned,
		Conflicts:  r.Conflicts,
		Extended:   r.Extended,
	}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, tournament.ErrFormat):
		return http.StatusBadRequest
	case errors.Is(err, tournament.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, tournament.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, tournament.ErrConflict), errors.Is(err, tournament.ErrInvariant):
		return http.StatusConflict
	case errors.Is(err, tournament.ErrCapacity):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func respondWithError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		log.Error("Request failed", "error", err)
	} else {
		log.Warn("Request rejected", "status", code, "error", err)
	}
	respondWithJSON(w, code, map[string]string{"error": err.Error()})
}

func respondWithJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Failed to encode response", "error", err)
	}
}

func ephemeral(text string) slack.Message {
	return slack.Message{Msg: slack.Msg{Text: text, ResponseType: slack.ResponseTypeEphemeral, ReplaceOriginal: false}}
}

// respondWithSlackMsg is a helper to format and write a Slack message as an HTTP response.
func respondWithSlackMsg(w http.ResponseWriter, msg slack.Message) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(msg); err != nil {
		log.Error("Failed to encode slack message to JSON", "error", err)
	}
}
