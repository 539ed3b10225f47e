package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/manhunt/internal/engine"
	"github.com/playperu/manhunt/internal/manhunt"
)

// PersonRequest identifies who issues a command.
type PersonRequest struct {
	PersonID string `json:"personId" required:"true"`
}

type StartRequest struct {
	PersonID string `json:"personId" required:"true"`
	Payload  string `json:"payload,omitempty" description:"Deep-link payload, e.g. join_<gameId>."`
}

type InputRequest struct {
	PersonID string `json:"personId" required:"true"`
	Text     string `json:"text"`
}

type LocationRequest struct {
	Latitude  float64 `json:"latitude" required:"true"`
	Longitude float64 `json:"longitude" required:"true"`
}

// ReplyResponse is the text to show the person who issued a command.
type ReplyResponse struct {
	Message  string        `json:"message"`
	FollowUp string        `json:"followUp,omitempty"`
	Accepted bool          `json:"accepted"`
	Step     string        `json:"step,omitempty"`
	Game     *GameResponse `json:"game,omitempty"`
}

type GameResponse struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	SponsorID    string     `json:"sponsorId"`
	Hunters      []string   `json:"hunters"`
	StartDate    time.Time  `json:"startDate"`
	Duration     int        `json:"duration" description:"Minutes."`
	EndDate      *time.Time `json:"endDate,omitempty"`
	Prize        int        `json:"prize"`
	Status       string     `json:"status" enum:"created,processed,ended"`
	Result       string     `json:"result,omitempty"`
	CurrentRound int        `json:"currentRound"`
	InviteLink   string     `json:"inviteLink"`
}

type ActiveGameResponse struct {
	Role string       `json:"role" enum:"sponsor,hunter"`
	Game GameResponse `json:"game"`
}

type BroadcastResponse struct {
	Round     int       `json:"round"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	SentAt    time.Time `json:"sentAt"`
}

type HelpResponse struct {
	Message string `json:"message"`
}

func toGameResponse(svc *engine.Service, g manhunt.Game) GameResponse {
	resp := GameResponse{
		ID:           g.ID,
		Name:         g.Name,
		SponsorID:    string(g.SponsorID),
		Hunters:      make([]string, 0, len(g.Hunters)),
		StartDate:    g.StartDate,
		Duration:     g.Duration,
		Prize:        g.Prize,
		Status:       string(g.Status),
		Result:       string(g.Result),
		CurrentRound: g.CurrentRound,
		InviteLink:   svc.InviteLink(g.ID),
	}
	for _, h := range g.Hunters {
		resp.Hunters = append(resp.Hunters, string(h))
	}
	if !g.EndDate.IsZero() {
		end := g.EndDate
		resp.EndDate = &end
	}
	return resp
}

func toReplyResponse(svc *engine.Service, rep engine.Reply) ReplyResponse {
	resp := ReplyResponse{
		Message:  rep.Text,
		FollowUp: rep.FollowUp,
		Accepted: rep.Accepted,
		Step:     string(rep.Step),
	}
	if rep.Game != nil {
		g := toGameResponse(svc, *rep.Game)
		resp.Game = &g
	}
	return resp
}

// decodePerson reads a request body carrying a personId, answering 400 when it
// is missing.
func decodePerson[T any](w http.ResponseWriter, r *http.Request, req *T, id func(*T) string) bool {
	if err := readJSON(r, req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if strings.TrimSpace(id(req)) == "" {
		writeError(w, http.StatusBadRequest, "personId is required")
		return false
	}
	return true
}

func personOf(req *PersonRequest) string { return req.PersonID }

// personCommand adapts a command taking only the caller to a handler.
func personCommand(logger *slog.Logger, svc *engine.Service, cmd func(*http.Request, manhunt.PersonID) (engine.Reply, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PersonRequest
		if !decodePerson(w, r, &req, personOf) {
			return
		}
		rep, err := cmd(r, manhunt.PersonID(req.PersonID))
		if err != nil {
			writeCommandError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toReplyResponse(svc, rep))
	}
}

func handleHelp(svc *engine.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, HelpResponse{Message: svc.Help()})
	}
}

func handleStart(logger *slog.Logger, svc *engine.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StartRequest
		if !decodePerson(w, r, &req, func(q *StartRequest) string { return q.PersonID }) {
			return
		}
		rep, err := svc.Start(r.Context(), manhunt.PersonID(req.PersonID), req.Payload)
		if err != nil {
			writeCommandError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toReplyResponse(svc, rep))
	}
}

func handleStartOnboarding(logger *slog.Logger, svc *engine.Service) http.HandlerFunc {
	return personCommand(logger, svc, func(r *http.Request, p manhunt.PersonID) (engine.Reply, error) {
		return svc.StartOnboarding(r.Context(), p)
	})
}

func handleOnboardingInput(logger *slog.Logger, svc *engine.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req InputRequest
		if !decodePerson(w, r, &req, func(q *InputRequest) string { return q.PersonID }) {
			return
		}
		rep, err := svc.Input(r.Context(), manhunt.PersonID(req.PersonID), req.Text)
		if err != nil {
			writeCommandError(w, r, logger, err)
			return
		}
		status := http.StatusOK
		if rep.Game != nil {
			status = http.StatusCreated
		}
		writeJSON(w, status, toReplyResponse(svc, rep))
	}
}

func handleCancelOnboarding(logger *slog.Logger, svc *engine.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := svc.CancelOnboarding(r.Context(), personFrom(r))
		if err != nil {
			writeCommandError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toReplyResponse(svc, rep))
	}
}

// gameCommand adapts a command on the {gameID} path parameter.
func gameCommand(logger *slog.Logger, svc *engine.Service, cmd func(*http.Request, manhunt.PersonID, string) (engine.Reply, error)) http.HandlerFunc {
	return personCommand(logger, svc, func(r *http.Request, p manhunt.PersonID) (engine.Reply, error) {
		return cmd(r, p, chi.URLParam(r, "gameID"))
	})
}

func handleJoin(logger *slog.Logger, svc *engine.Service) http.HandlerFunc {
	return gameCommand(logger, svc, func(r *http.Request, p manhunt.PersonID, id string) (engine.Reply, error) {
		return svc.Join(r.Context(), p, id)
	})
}

func handleLeave(logger *slog.Logger, svc *engine.Service) http.HandlerFunc {
	return gameCommand(logger, svc, func(r *http.Request, p manhunt.PersonID, id string) (engine.Reply, error) {
		return svc.Leave(r.Context(), p, id)
	})
}

func handleCancel(logger *slog.Logger, svc *engine.Service) http.HandlerFunc {
	return gameCommand(logger, svc, func(r *http.Request, p manhunt.PersonID, id string) (engine.Reply, error) {
		return svc.Cancel(r.Context(), p, id)
	})
}

func handleCaught(logger *slog.Logger, svc *engine.Service) http.HandlerFunc {
	return personCommand(logger, svc, func(r *http.Request, p manhunt.PersonID) (engine.Reply, error) {
		return svc.Caught(r.Context(), p)
	})
}

func handleReportLocation(logger *slog.Logger, svc *engine.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LocationRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		rep, err := svc.ReportLocation(r.Context(), personFrom(r), req.Latitude, req.Longitude)
		if err != nil {
			writeCommandError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toReplyResponse(svc, rep))
	}
}

func handleActiveGame(logger *slog.Logger, svc *engine.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, role, err := svc.ActiveGame(r.Context(), personFrom(r))
		if err != nil {
			writeCommandError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, ActiveGameResponse{Role: string(role), Game: toGameResponse(svc, g)})
	}
}

func handleGetGame(logger *slog.Logger, svc *engine.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, err := svc.GameByID(r.Context(), chi.URLParam(r, "gameID"))
		if err != nil {
			writeCommandError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toGameResponse(svc, g))
	}
}

func handleListBroadcasts(logger *slog.Logger, svc *engine.Service, log BroadcastLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, err := svc.GameByID(r.Context(), chi.URLParam(r, "gameID"))
		if err != nil {
			writeCommandError(w, r, logger, err)
			return
		}
		entries, err := log.Broadcasts(r.Context(), g.ID)
		if err != nil {
			writeCommandError(w, r, logger, err)
			return
		}
		resp := make([]BroadcastResponse, 0, len(entries))
		for _, e := range entries {
			resp = append(resp, BroadcastResponse{
				Round:     e.Round,
				Latitude:  e.Latitude,
				Longitude: e.Longitude,
				SentAt:    e.SentAt,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
