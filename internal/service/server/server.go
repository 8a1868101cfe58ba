package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"backup_vault/internal/utils/log"
	"backup_vault/internal/vault"
)

type (
	HttpServer struct {
		addr     string
		store    vault.Store
		minCodes int
		maxCodes int
		started  time.Time
		srv      *http.Server
	}

	registerRequest struct {
		Username       string   `json:"username"`
		EncryptedCodes []string `json:"encryptedCodes"`
	}

	usernameRequest struct {
		Username string `json:"username"`
	}

	registerResponse struct {
		Success    bool   `json:"success"`
		Message    string `json:"message"`
		TotalCodes int    `json:"totalCodes"`
	}

	retrieveResponse struct {
		EncryptedCode  string `json:"encryptedCode"`
		CodesRemaining int    `json:"codesRemaining"`
		TotalCodes     int    `json:"totalCodes"`
	}

	resetResponse struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}

	statusResponse struct {
		Uptime     float64   `json:"uptime"`
		Status     string    `json:"status"`
		Time       time.Time `json:"time"`
		TotalUsers int64     `json:"totalUsers"`
	}

	messageResponse struct {
		Message string `json:"message"`
	}

	errorResponse struct {
		Error string `json:"error"`
	}
)

func NewHttpServer(addr string, store vault.Store, minCodes, maxCodes int) *HttpServer {
	return &HttpServer{
		addr:     addr,
		store:    store,
		minCodes: minCodes,
		maxCodes: maxCodes,
		started:  time.Now(),
	}
}

// Run blocks serving HTTP until Shutdown is called or the listener fails.
func (s *HttpServer) Run() error {
	s.srv = &http.Server{
		Addr:    s.addr,
		Handler: s.Router(),
	}

	log.Info("http server listening", zap.String("addr", s.addr))
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *HttpServer) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *HttpServer) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestLogger)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("", s.HandleWelcome()).Methods(http.MethodGet)
	api.HandleFunc("/", s.HandleWelcome()).Methods(http.MethodGet)
	api.HandleFunc("/status", s.HandleStatus()).Methods(http.MethodGet)
	api.HandleFunc("/register", s.HandleRegister()).Methods(http.MethodPost)
	api.HandleFunc("/retrieve", s.HandleRetrieve()).Methods(http.MethodPost)
	api.HandleFunc("/reset", s.HandleReset()).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	return r
}

func (s *HttpServer) HandleWelcome() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, messageResponse{Message: "Welcome to the 2FA Vault API"})
	}
}

func (s *HttpServer) HandleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		total, err := s.store.Count(r.Context())
		if err != nil {
			log.Error("status: count users failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Service unavailable")
			return
		}

		writeJSON(w, http.StatusOK, statusResponse{
			Uptime:     time.Since(s.started).Seconds(),
			Status:     "OK",
			Time:       time.Now(),
			TotalUsers: total,
		})
	}
}

func (s *HttpServer) HandleRegister() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		if len(req.Username) < 3 {
			writeError(w, http.StatusBadRequest, "Username must be at least 3 characters")
			return
		}
		if len(req.EncryptedCodes) < s.minCodes || len(req.EncryptedCodes) > s.maxCodes {
			writeError(w, http.StatusBadRequest, s.codeCountMessage())
			return
		}
		for _, code := range req.EncryptedCodes {
			if code == "" {
				writeError(w, http.StatusBadRequest, "Invalid encrypted code format")
				return
			}
		}

		err := s.store.Register(r.Context(), req.Username, req.EncryptedCodes)
		switch {
		case errors.Is(err, vault.ErrAlreadyExists):
			writeError(w, http.StatusConflict, "Username already exists")
			return
		case errors.Is(err, vault.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "Invalid encrypted code format")
			return
		case err != nil:
			log.Error("register failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		writeJSON(w, http.StatusOK, registerResponse{
			Success:    true,
			Message:    "User registered successfully",
			TotalCodes: len(req.EncryptedCodes),
		})
	}
}

func (s *HttpServer) HandleRetrieve() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req usernameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Username == "" {
			writeError(w, http.StatusBadRequest, "Username is required")
			return
		}

		result, err := s.store.RetrieveNext(r.Context(), req.Username)
		var rateLimited *vault.RateLimitedError
		switch {
		case errors.Is(err, vault.ErrNotFound):
			writeError(w, http.StatusNotFound, "User not found")
			return
		case errors.As(err, &rateLimited):
			writeError(w, http.StatusTooManyRequests,
				fmt.Sprintf("Please wait %d minute(s) before requesting another code", rateLimited.WaitMinutes()))
			return
		case errors.Is(err, vault.ErrExhausted):
			writeError(w, http.StatusGone, "No backup codes remaining")
			return
		case err != nil:
			log.Error("retrieve failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		writeJSON(w, http.StatusOK, retrieveResponse{
			EncryptedCode:  result.Envelope,
			CodesRemaining: result.Remaining,
			TotalCodes:     result.Total,
		})
	}
}

func (s *HttpServer) HandleReset() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req usernameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Username == "" {
			writeError(w, http.StatusBadRequest, "Username is required")
			return
		}

		err := s.store.Reset(r.Context(), req.Username)
		switch {
		case errors.Is(err, vault.ErrNotFound):
			writeError(w, http.StatusNotFound, "User not found")
			return
		case err != nil:
			log.Error("reset failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		writeJSON(w, http.StatusOK, resetResponse{
			Success: true,
			Message: "Account deleted successfully",
		})
	}
}

func (s *HttpServer) codeCountMessage() string {
	if s.minCodes == s.maxCodes {
		return fmt.Sprintf("Must provide exactly %d encrypted codes", s.maxCodes)
	}
	return fmt.Sprintf("Must provide between %d and %d encrypted codes", s.minCodes, s.maxCodes)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("write response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
