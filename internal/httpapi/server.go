// Package httpapi exposes the chatbot over HTTP and WebSocket.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ishantai95/invoicebot/internal/auth"
	"github.com/ishantai95/invoicebot/internal/chat"
	"github.com/ishantai95/invoicebot/internal/config"
	"github.com/ishantai95/invoicebot/internal/observability"
	"github.com/ishantai95/invoicebot/internal/session"
)

// ServiceFactory builds a fresh chat service. The server keeps one
// service per API-key label so each credential gets fully isolated
// sessions and history.
type ServiceFactory func(label string) *chat.Service

type Server struct {
	cfg       config.Config
	validator *auth.StaticValidator
	factory   ServiceFactory
	metrics   *observability.Metrics
	logger    *slog.Logger
	upgrader  websocket.Upgrader

	mu       sync.Mutex
	services map[string]*chat.Service
}

func New(cfg config.Config, validator *auth.StaticValidator, factory ServiceFactory, metrics *observability.Metrics, logger *slog.Logger) *Server {
	return &Server{
		cfg:       cfg,
		validator: validator,
		factory:   factory,
		metrics:   metrics,
		logger:    logger,
		services:  make(map[string]*chat.Service),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Browser connections must come from the same origin unless
				// the deployment explicitly opens the API up.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	if s.cfg.AllowAnyOrigin {
		r.Use(corsMiddleware)
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.apiKeyMiddleware)
		r.Post("/v1/authenticate", s.handleAuthenticate)
		r.Post("/v1/chat", s.handleChat)
		r.Get("/v1/chat/ws", s.handleChatWS)
		r.Get("/v1/history/{customerName}", s.handleHistory)
		r.Post("/v1/clear/{customerName}", s.handleClear)
	})

	return r
}

// serviceFor returns the chat service owned by the request's credential,
// creating it on first use. With authentication disabled all requests
// share one instance.
func (s *Server) serviceFor(r *http.Request) *chat.Service {
	label := "default"
	if id, ok := auth.IdentityFromContext(r.Context()); ok {
		label = id.Label
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[label]
	if !ok {
		svc = s.factory(label)
		s.services[label] = svc
	}
	return svc
}

// Close shuts down every per-credential service.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, svc := range s.services {
		if err := svc.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"auth_enabled": s.validator.Enabled(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "ready",
		"auth_enabled": s.validator.Enabled(),
	})
}

type authenticateRequest struct {
	CustomerName string `json:"customer_name"`
}

type authenticateResponse struct {
	CustomerName string               `json:"customer_name"`
	Stats        session.ProfileStats `json:"stats"`
	Suggestions  []string             `json:"suggestions"`
}

func (s *Server) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var req authenticateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	name := strings.TrimSpace(req.CustomerName)
	if name == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "customer_name is required")
		return
	}

	svc := s.serviceFor(r)
	sess, err := svc.Authenticate(r.Context(), name)
	if err != nil {
		if errors.Is(err, chat.ErrCustomerNotFound) {
			respondError(w, http.StatusNotFound, "customer_not_found", "no invoices found for this customer")
			return
		}
		s.logger.Error("authenticate failed", "customer", name, "error", err)
		respondError(w, http.StatusBadGateway, "store_unavailable", "could not verify customer")
		return
	}

	respondJSON(w, http.StatusOK, authenticateResponse{
		CustomerName: sess.CustomerName(),
		Stats:        sess.Stats(),
		Suggestions:  svc.SuggestionsFor(sess.CustomerName()),
	})
}

type chatRequest struct {
	CustomerName string `json:"customer_name"`
	Message      string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	name := strings.TrimSpace(req.CustomerName)
	if name == "" || strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "customer_name and message are required")
		return
	}

	svc := s.serviceFor(r)
	result, err := svc.HandleTurn(r.Context(), name, req.Message)
	if err != nil {
		if errors.Is(err, chat.ErrCustomerNotFound) {
			respondError(w, http.StatusNotFound, "customer_not_found", "no invoices found for this customer")
			return
		}
		s.logger.Error("chat turn failed", "customer", name, "error", err)
		respondError(w, http.StatusBadGateway, "store_unavailable", "could not verify customer")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(chi.URLParam(r, "customerName"))
	if name == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "missing customer name")
		return
	}

	svc := s.serviceFor(r)
	turns, err := svc.History(r.Context(), name)
	if err != nil {
		if errors.Is(err, chat.ErrCustomerNotFound) {
			respondError(w, http.StatusNotFound, "customer_not_found", "no invoices found for this customer")
			return
		}
		s.logger.Error("history lookup failed", "customer", name, "error", err)
		respondError(w, http.StatusBadGateway, "store_unavailable", "could not verify customer")
		return
	}
	if turns == nil {
		turns = []session.Turn{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"customer_name": name,
		"history":       turns,
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(chi.URLParam(r, "customerName"))
	if name == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "missing customer name")
		return
	}

	svc := s.serviceFor(r)
	if err := svc.Clear(r.Context(), name); err != nil {
		if errors.Is(err, chat.ErrCustomerNotFound) {
			respondError(w, http.StatusNotFound, "customer_not_found", "no invoices found for this customer")
			return
		}
		s.logger.Error("clear failed", "customer", name, "error", err)
		respondError(w, http.StatusBadGateway, "store_unavailable", "could not verify customer")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"customer_name": name,
		"cleared":       true,
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
