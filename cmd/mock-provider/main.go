// Command mock-provider is a local stand-in for the Twilio Messages API.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"outbound/internal/config"
	"outbound/internal/httpserver"
	"outbound/internal/logging"
)

type sendResponse struct {
	Sid     string `json:"sid,omitempty"`
	Status  string `json:"status"`
	Code    *int   `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

type server struct {
	cfg config.MockProviderConfig
	idx atomic.Uint64
}

func main() {
	cfg := config.LoadMockProvider()
	logging.Init("mock-provider", logging.Options{Format: cfg.LogFormat, Level: cfg.LogLevel, File: cfg.LogFile})

	s := &server{cfg: cfg}
	slog.Info("mock provider listening", "port", cfg.Port, "fail_status", cfg.FailStatus, "delay", cfg.Delay)
	if err := http.ListenAndServe(":"+cfg.Port, httpserver.Logging(s.router())); err != nil {
		slog.Error("mock provider server failed", "err", err)
		os.Exit(1)
	}
}

func (s *server) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/2010-04-01/Accounts/{AccountSid}/Messages.json", s.handleSend).Methods(http.MethodPost)
	return r
}

func (s *server) handleSend(w http.ResponseWriter, r *http.Request) {
	user, pass, ok := r.BasicAuth()
	if !ok || user != s.cfg.AccountSID || pass != s.cfg.AuthToken || mux.Vars(r)["AccountSid"] != s.cfg.AccountSID {
		writeError(w, http.StatusUnauthorized, 20003, "Authentication Error")
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, 21620, "Invalid form data")
		return
	}
	if r.Form.Get("To") == "" || r.Form.Get("Body") == "" {
		writeError(w, http.StatusBadRequest, 21602, "Missing required parameter")
		return
	}
	if r.Form.Get("MessagingServiceSid") == "" && r.Form.Get("From") == "" {
		writeError(w, http.StatusBadRequest, 21606, "From or MessagingServiceSid is required")
		return
	}

	if s.cfg.Delay > 0 {
		select {
		case <-r.Context().Done():
			return
		case <-time.After(s.cfg.Delay):
		}
	}

	if s.cfg.FailStatus >= 400 {
		writeError(w, s.cfg.FailStatus, failureCode(s.cfg.FailStatus), http.StatusText(s.cfg.FailStatus))
		return
	}
	sid := fmt.Sprintf("SM%030d", s.idx.Add(1))
	writeJSON(w, http.StatusCreated, sendResponse{Sid: sid, Status: "queued"})
}

func failureCode(status int) int {
	switch status {
	case http.StatusBadRequest:
		return 21211
	case http.StatusTooManyRequests:
		return 20429
	default:
		return 20500
	}
}

func writeError(w http.ResponseWriter, status, code int, msg string) {
	writeJSON(w, status, sendResponse{Status: "failed", Code: &code, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
