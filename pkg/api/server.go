package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cbodonnell/partyhub/pkg/api/handlers"
	"github.com/cbodonnell/partyhub/pkg/api/middleware"
	authproviders "github.com/cbodonnell/partyhub/pkg/auth/providers"
	"github.com/cbodonnell/partyhub/pkg/game"
	"github.com/cbodonnell/partyhub/pkg/game/quiz"
	"github.com/cbodonnell/partyhub/pkg/log"
	"github.com/cbodonnell/partyhub/pkg/network"
	"github.com/gorilla/mux"
)

type APIServer struct {
	server *http.Server
	tls    *TLSConfig
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewAPIServerOptions struct {
	Port          int
	TLS           *TLSConfig
	AllowOrigins  []string
	AuthProvider  authproviders.AuthProvider
	Deps          game.Deps
	ClientManager *network.ClientManager
	QuizPool      []quiz.Question
}

// NewAPIServer creates a new http.Server for handling API requests
func NewAPIServer(opts NewAPIServerOptions) *APIServer {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: NewRouter(opts),
	}
	return &APIServer{
		server: server,
		tls:    opts.TLS,
	}
}

// NewRouter builds the API routes. Port and TLS are ignored.
func NewRouter(opts NewAPIServerOptions) http.Handler {
	h := handlers.NewHandlers(handlers.NewHandlersOptions{
		Deps:           opts.Deps,
		ClientManager:  opts.ClientManager,
		OriginPatterns: originPatterns(opts.AllowOrigins),
		QuizPool:       opts.QuizPool,
	})

	r := mux.NewRouter()
	r.Use(middleware.NewCORSMiddleware(opts.AllowOrigins))
	// preflight requests carry no credentials
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	api := r.NewRoute().Subrouter()
	api.Use(middleware.NewAuthMiddleware(opts.AuthProvider))
	api.HandleFunc("/games", h.HandleListGames()).Methods(http.MethodGet)
	api.HandleFunc("/games/{game}/rooms", h.HandleListRooms()).Methods(http.MethodGet)
	api.HandleFunc("/games/{game}/rooms", h.HandleCreateRoom()).Methods(http.MethodPost)
	api.HandleFunc("/games/{game}/rooms/search", h.HandleSearchRoom()).Methods(http.MethodPost)

	room := api.PathPrefix("/games/{game}/rooms/{roomID}").Subrouter()
	room.HandleFunc("", h.HandleGetRoom()).Methods(http.MethodGet)
	room.HandleFunc("/clients", h.HandleRoomClients()).Methods(http.MethodGet)
	room.HandleFunc("/ws", h.HandleRoomFeed()).Methods(http.MethodGet)
	room.HandleFunc("/join", h.HandleJoinRoom()).Methods(http.MethodPost)
	room.HandleFunc("/start", h.HandleStart()).Methods(http.MethodPost)
	room.HandleFunc("/restart", h.HandleRestart()).Methods(http.MethodPost)
	room.HandleFunc("/advance", h.HandleAdvance()).Methods(http.MethodPost)
	room.HandleFunc("/clue", h.HandleClue()).Methods(http.MethodPost)
	room.HandleFunc("/vote", h.HandleVote()).Methods(http.MethodPost)
	room.HandleFunc("/guess", h.HandleGuess()).Methods(http.MethodPost)
	room.HandleFunc("/draw", h.HandleDraw()).Methods(http.MethodPost)
	room.HandleFunc("/claim", h.HandleClaim()).Methods(http.MethodPost)
	room.HandleFunc("/answer", h.HandleAnswer()).Methods(http.MethodPost)

	return r
}

// originPatterns converts allowed origins to the host patterns the websocket handshake checks
func originPatterns(allowOrigins []string) []string {
	patterns := make([]string, 0, len(allowOrigins))
	for _, origin := range allowOrigins {
		if u, err := parseOrigin(origin); err == nil {
			patterns = append(patterns, u)
		}
	}
	return patterns
}

// Start starts the APIServer
func (s *APIServer) Start() {
	var listenAndServe func() error
	if s.tls != nil {
		log.Info("API server listening on %s with TLS", s.server.Addr)
		listenAndServe = func() error {
			return s.server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		}
	} else {
		log.Info("API server listening on %s", s.server.Addr)
		listenAndServe = s.server.ListenAndServe
	}
	if err := listenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("API server closed")
			return
		}
		log.Error("API server error: %v", err)
	}
}

// Stop stops the APIServer
func (s *APIServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
