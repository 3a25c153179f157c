// Package api exposes the auction ledger over HTTP and WebSocket.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"auction_go/internal/domain"
	"auction_go/internal/engine"
	"auction_go/internal/event"
	"auction_go/internal/infra"
	"auction_go/internal/service"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

const maxBodyBytes = 1 << 20

// Config wires a Server.
type Config struct {
	Dispatcher  *engine.Dispatcher
	Live        *service.LiveState
	Reader      domain.AuctionReader
	Stats       *service.StatsService
	Hub         *Hub
	Metrics     *infra.Metrics
	Gatherer    prometheus.Gatherer // nil disables /metrics
	CORSOrigins []string
}

// Server handles the device, dashboard and operator endpoints.
type Server struct {
	dispatcher *engine.Dispatcher
	live       *service.LiveState
	reader     domain.AuctionReader
	stats      *service.StatsService
	hub        *Hub
	metrics    *infra.Metrics
	gatherer   prometheus.Gatherer
	router     *mux.Router
	handler    http.Handler
}

// NewServer creates the server and its routes.
func NewServer(cfg Config) *Server {
	s := &Server{
		dispatcher: cfg.Dispatcher,
		live:       cfg.Live,
		reader:     cfg.Reader,
		stats:      cfg.Stats,
		hub:        cfg.Hub,
		metrics:    cfg.Metrics,
		gatherer:   cfg.Gatherer,
		router:     mux.NewRouter(),
	}
	if s.metrics == nil {
		s.metrics = &infra.Metrics{}
	}
	if s.hub == nil {
		s.hub = NewHub(s.metrics)
	}

	s.setupRoutes()

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	s.handler = c.Handler(s.router)
	return s
}

// Handler returns the CORS-wrapped router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) setupRoutes() {
	// Devices
	s.router.HandleFunc("/receive-data", s.handleReceiveData).Methods(http.MethodPost)

	// Operator
	s.router.HandleFunc("/set-auction", s.handleSetAuction).Methods(http.MethodPost)

	// Dashboards
	s.router.HandleFunc("/auction_state", s.handleAuctionState).Methods(http.MethodGet)
	s.router.HandleFunc("/bids_history", s.handleBidsHistory).Methods(http.MethodGet)
	s.router.HandleFunc("/all_auctions", s.handleAllAuctions).Methods(http.MethodGet)
	s.router.HandleFunc("/auction_stats", s.handleAuctionStats).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", s.handleWebSocket)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
}

func (s *Server) handleReceiveData(w http.ResponseWriter, r *http.Request) {
	msg := event.AcquireMessage()
	defer event.ReleaseMessage(msg)

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(msg); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	reply, err := s.dispatcher.Dispatch(r.Context(), msg)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			slog.ErrorContext(r.Context(), "Message processing failed",
				slog.String("message_type", string(msg.MessageType)),
				slog.Int64("message_id", msg.MessageID),
				slog.Any("error", err))
		}
		respondError(w, status, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, reply)
}

func (s *Server) handleSetAuction(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid form: "+err.Error())
		return
	}

	name := strings.TrimSpace(r.PostForm.Get("item_name"))
	if name == "" {
		respondError(w, http.StatusBadRequest, "item_name is required")
		return
	}
	item := domain.Item{Name: name, Description: r.PostForm.Get("item_description")}

	s.live.StageItem(item)
	slog.InfoContext(r.Context(), "Auction item staged", slog.String("item_name", item.Name))
	respondJSON(w, http.StatusOK, map[string]any{"status": "auction item set", "item": item})
}

func (s *Server) handleAuctionState(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.live.Read())
}

func (s *Server) handleBidsHistory(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.live.BidHistory())
}

func (s *Server) handleAllAuctions(w http.ResponseWriter, r *http.Request) {
	auctions, err := s.reader.ListAuctions(r.Context())
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"auctions": auctions})
}

func (s *Server) handleAuctionStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.stats.Compute(r.Context())
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, st)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	view := s.live.Read()
	respondJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"persistence":       s.dispatcher.Ledger().Policy(),
		"auction_active":    view.IsActive,
		"auction_id":        view.AuctionID,
		"websocket_clients": s.hub.ClientCount(),
	})
}

// statusFor maps ledger errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnknownMessageType), errors.Is(err, domain.ErrInvalidMessage):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNoActiveAuction):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAuctionAlreadyActive):
		return http.StatusConflict
	case errors.Is(err, domain.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorResponse matches the {"detail": ...} body dashboards already parse.
type errorResponse struct {
	Detail string `json:"detail"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("Failed to write response", slog.Any("error", err))
	}
}

func respondError(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, errorResponse{Detail: detail})
}
