package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/cbodonnell/partyhub/pkg/auth"
	"github.com/cbodonnell/partyhub/pkg/game"
	"github.com/cbodonnell/partyhub/pkg/game/bingo"
	"github.com/cbodonnell/partyhub/pkg/game/imposter"
	"github.com/cbodonnell/partyhub/pkg/game/quiz"
	"github.com/cbodonnell/partyhub/pkg/game/types"
	"github.com/cbodonnell/partyhub/pkg/log"
	"github.com/cbodonnell/partyhub/pkg/network"
	"github.com/cbodonnell/partyhub/pkg/rooms"
	"github.com/cbodonnell/partyhub/pkg/session"
	"github.com/cbodonnell/partyhub/pkg/store"
	"github.com/gorilla/mux"
)

// ErrUnsupportedAction is returned for an action the game does not have
var ErrUnsupportedAction = errors.New("action not supported by this game")

// Handlers serves the room endpoints of every registered game.
type Handlers struct {
	deps          game.Deps
	sessions      map[string]*session.Manager
	imposter      *imposter.Machine
	bingo         *bingo.Machine
	quiz          *quiz.Machine
	clientManager *network.ClientManager
	feed          *network.RoomFeed
}

type NewHandlersOptions struct {
	Deps          game.Deps
	ClientManager *network.ClientManager
	// OriginPatterns are the cross origin hosts allowed to open a room feed
	OriginPatterns []string
	// QuizPool defaults to the built-in questions
	QuizPool []quiz.Question
}

func NewHandlers(opts NewHandlersOptions) *Handlers {
	h := &Handlers{
		deps:          opts.Deps,
		sessions:      make(map[string]*session.Manager),
		imposter:      imposter.NewMachine(imposter.NewMachineOptions{Deps: opts.Deps}),
		bingo:         bingo.NewMachine(bingo.NewMachineOptions{Deps: opts.Deps}),
		quiz:          quiz.NewMachine(quiz.NewMachineOptions{Deps: opts.Deps, Pool: opts.QuizPool}),
		clientManager: opts.ClientManager,
	}
	if h.clientManager == nil {
		h.clientManager = network.NewClientManager()
	}
	for _, def := range game.Definitions() {
		h.sessions[def.ID] = session.NewManager(session.NewManagerOptions{
			Deps:       opts.Deps,
			Collection: def.Collection,
		})
	}
	h.feed = network.NewRoomFeed(network.NewRoomFeedOptions{
		Store:          opts.Deps.Store,
		ClientManager:  h.clientManager,
		OriginPatterns: opts.OriginPatterns,
		Hooks: map[string]network.SnapshotHook{
			game.Imposter: h.evaluateImposterGuess,
		},
	})
	return h
}

// request is the resolved target of a room request
type request struct {
	def      game.Definition
	roomID   string
	identity auth.Identity
	sessions *session.Manager
}

func (h *Handlers) resolve(r *http.Request) (request, error) {
	vars := mux.Vars(r)
	def, err := game.Lookup(vars["game"])
	if err != nil {
		return request{}, err
	}
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || identity.UID == "" {
		return request{}, types.Precondition(types.ErrMissingIdentity)
	}
	return request{
		def:      def,
		roomID:   vars["roomID"],
		identity: identity,
		sessions: h.sessions[def.ID],
	}, nil
}

func (h *Handlers) HandleListGames() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, game.Definitions())
	}
}

// HandleListRooms lists the waiting rooms of a game
func (h *Handlers) HandleListRooms() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := h.resolve(r)
		if err != nil {
			writeError(w, err)
			return
		}
		open, err := req.sessions.ListOpen(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]roomSummary, 0, len(open))
		for _, room := range open {
			out = append(out, summarize(room))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (h *Handlers) HandleCreateRoom() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := h.resolve(r)
		if err != nil {
			writeError(w, err)
			return
		}
		id, err := req.sessions.Create(r.Context(), req.identity.Player())
		if err != nil {
			writeError(w, err)
			return
		}
		log.Info("Player %s created %s room %s", req.identity.UID, req.def.ID, id)
		writeRoomLocation(w, http.StatusCreated, req.def.ID, id)
	}
}

func (h *Handlers) HandleSearchRoom() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := h.resolve(r)
		if err != nil {
			writeError(w, err)
			return
		}
		id, err := req.sessions.SearchAndJoin(r.Context(), req.identity.Player())
		if err != nil {
			writeError(w, err)
			return
		}
		writeRoomLocation(w, http.StatusOK, req.def.ID, id)
	}
}

func (h *Handlers) HandleJoinRoom() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := h.resolve(r)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := req.sessions.Join(r.Context(), req.roomID, req.identity.Player()); err != nil {
			writeError(w, err)
			return
		}
		writeRoomLocation(w, http.StatusOK, req.def.ID, req.roomID)
	}
}

// HandleGetRoom returns the room record as stored
func (h *Handlers) HandleGetRoom() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := h.resolve(r)
		if err != nil {
			writeError(w, err)
			return
		}
		snap, err := h.deps.Store.Get(r.Context(), req.def.Collection, req.roomID)
		if store.IsNotFound(err) {
			writeError(w, types.Precondition(types.ErrRoomNotFound))
			return
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, roomRecord(snap))
	}
}

// HandleRoomClients lists the players currently watching a room
func (h *Handlers) HandleRoomClients() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := h.resolve(r)
		if err != nil {
			writeError(w, err)
			return
		}
		clients := h.clientManager.GetClients(network.RoomKey{Game: req.def.ID, RoomID: req.roomID})
		users := make([]string, 0, len(clients))
		for _, client := range clients {
			users = append(users, client.UserID)
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"count": len(users), "users": users})
	}
}

// HandleRoomFeed streams the room over a websocket
func (h *Handlers) HandleRoomFeed() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := h.resolve(r)
		if err != nil {
			writeError(w, err)
			return
		}
		h.feed.Serve(w, r, req.def, req.roomID, req.identity.UID)
	}
}

func (h *Handlers) HandleStart() http.HandlerFunc {
	return h.action(func(ctx context.Context, req request, r *http.Request) error {
		switch req.def.ID {
		case game.Imposter:
			return h.imposter.Start(ctx, req.roomID, req.identity.UID, r.FormValue("setId"))
		case game.Bingo:
			return h.bingo.Start(ctx, req.roomID, req.identity.UID)
		case game.Quiz:
			return h.quiz.Start(ctx, req.roomID, req.identity.UID)
		}
		return ErrUnsupportedAction
	})
}

func (h *Handlers) HandleRestart() http.HandlerFunc {
	return h.action(func(ctx context.Context, req request, r *http.Request) error {
		switch req.def.ID {
		case game.Imposter:
			return h.imposter.Restart(ctx, req.roomID, req.identity.UID, r.FormValue("setId"))
		case game.Bingo:
			return h.bingo.Restart(ctx, req.roomID, req.identity.UID)
		case game.Quiz:
			return h.quiz.Restart(ctx, req.roomID, req.identity.UID)
		}
		return ErrUnsupportedAction
	})
}

func (h *Handlers) HandleAdvance() http.HandlerFunc {
	return h.action(func(ctx context.Context, req request, r *http.Request) error {
		switch req.def.ID {
		case game.Imposter:
			return h.imposter.Advance(ctx, req.roomID, req.identity.UID)
		case game.Quiz:
			return h.quiz.Advance(ctx, req.roomID, req.identity.UID)
		}
		return ErrUnsupportedAction
	})
}

func (h *Handlers) HandleClue() http.HandlerFunc {
	return h.action(func(ctx context.Context, req request, r *http.Request) error {
		if req.def.ID != game.Imposter {
			return ErrUnsupportedAction
		}
		st, err := h.imposter.Load(ctx, req.roomID)
		if err != nil {
			return err
		}
		return h.imposter.SubmitClue(ctx, st, req.identity.UID, r.FormValue("clue"))
	})
}

func (h *Handlers) HandleVote() http.HandlerFunc {
	return h.action(func(ctx context.Context, req request, r *http.Request) error {
		if req.def.ID != game.Imposter {
			return ErrUnsupportedAction
		}
		target := strings.TrimSpace(r.FormValue("target"))
		if target == "" {
			return badRequest("target is required")
		}
		st, err := h.imposter.Load(ctx, req.roomID)
		if err != nil {
			return err
		}
		return h.imposter.SubmitVote(ctx, st, req.identity.UID, target)
	})
}

// HandleGuess stores the imposter's guess and evaluates it for the caller right away
func (h *Handlers) HandleGuess() http.HandlerFunc {
	return h.action(func(ctx context.Context, req request, r *http.Request) error {
		if req.def.ID != game.Imposter {
			return ErrUnsupportedAction
		}
		st, err := h.imposter.Load(ctx, req.roomID)
		if err != nil {
			return err
		}
		if err := h.imposter.SubmitGuess(ctx, st, req.identity.UID, r.FormValue("guess")); err != nil {
			return err
		}
		st, err = h.imposter.Load(ctx, req.roomID)
		if err != nil {
			return err
		}
		_, err = h.imposter.EvaluateGuess(ctx, st, req.identity.UID)
		return err
	})
}

func (h *Handlers) HandleDraw() http.HandlerFunc {
	return h.action(func(ctx context.Context, req request, r *http.Request) error {
		if req.def.ID != game.Bingo {
			return ErrUnsupportedAction
		}
		return h.bingo.Draw(ctx, req.roomID, req.identity.UID)
	})
}

func (h *Handlers) HandleClaim() http.HandlerFunc {
	return h.action(func(ctx context.Context, req request, r *http.Request) error {
		if req.def.ID != game.Bingo {
			return ErrUnsupportedAction
		}
		return h.bingo.Claim(ctx, req.roomID, req.identity.UID)
	})
}

func (h *Handlers) HandleAnswer() http.HandlerFunc {
	return h.action(func(ctx context.Context, req request, r *http.Request) error {
		if req.def.ID != game.Quiz {
			return ErrUnsupportedAction
		}
		option, err := strconv.Atoi(strings.TrimSpace(r.FormValue("option")))
		if err != nil {
			return badRequest("option must be a number")
		}
		st, err := h.quiz.Load(ctx, req.roomID)
		if err != nil {
			return err
		}
		return h.quiz.SubmitAnswer(ctx, st, req.identity.UID, option)
	})
}

// action wraps a room action that answers 204 on success
func (h *Handlers) action(fn func(ctx context.Context, req request, r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := h.resolve(r)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := fn(r.Context(), req, r); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// evaluateImposterGuess runs on the websocket session of userID for every snapshot
func (h *Handlers) evaluateImposterGuess(ctx context.Context, def game.Definition, view rooms.View[store.Document], userID string) {
	if !view.Exists {
		return
	}
	st := imposter.State{}
	if err := store.Decode(view.Room, &st); err != nil {
		log.Error("Failed to decode imposter room %s: %v", view.ID, err)
		return
	}
	st.SetID(view.ID)
	if _, err := h.imposter.EvaluateGuess(ctx, st, userID); err != nil {
		log.Error("Failed to evaluate imposter guess in room %s: %v", view.ID, err)
	}
}

type roomSummary struct {
	ID        string         `json:"id"`
	Host      string         `json:"host"`
	Players   []types.Player `json:"players"`
	Status    types.Status   `json:"status"`
	CreatedAt int64          `json:"createdAt"`
}

func summarize(room types.Room) roomSummary {
	return roomSummary{
		ID:        room.ID,
		Host:      room.Host,
		Players:   room.Players,
		Status:    room.Status,
		CreatedAt: room.CreatedAt,
	}
}

func roomRecord(snap store.Snapshot) map[string]interface{} {
	out := make(map[string]interface{}, len(snap.Data)+1)
	for k, v := range snap.Data {
		out[k] = v
	}
	out["id"] = snap.ID
	return out
}

type badRequestError string

func (e badRequestError) Error() string {
	return string(e)
}

func badRequest(msg string) error {
	return badRequestError(msg)
}

// statusFor maps an error to the response status
func statusFor(err error) int {
	var bad badRequestError
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrMissingIdentity):
		return http.StatusUnauthorized
	case errors.Is(err, types.ErrNotHost):
		return http.StatusForbidden
	case errors.Is(err, types.ErrRoomNotFound), errors.Is(err, types.ErrUnknownGame), errors.Is(err, ErrUnsupportedAction):
		return http.StatusNotFound
	case errors.Is(err, types.ErrEmptySubmission), errors.Is(err, types.ErrInvalidAnswer):
		return http.StatusBadRequest
	case types.IsPrecondition(err), errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error("Request failed: %v", err)
		writeJSON(w, status, map[string]string{"error": "internal error"})
		return
	}
	log.Debug("Request rejected with %d: %v", status, err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeRoomLocation(w http.ResponseWriter, status int, gameID, roomID string) {
	w.Header().Set("Location", fmt.Sprintf("/games/%s/rooms/%s", gameID, roomID))
	writeJSON(w, status, map[string]string{"id": roomID})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response: %v", err)
	}
}
