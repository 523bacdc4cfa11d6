package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"outbound/internal/domain"
)

const maxBodyBytes = 1 << 20

type Messaging interface {
	SendMessage(ctx context.Context, req domain.SendRequest) (domain.Message, error)
	SendToMany(ctx context.Context, tmpl domain.Template, recipients []domain.Recipient) (domain.FanoutReport, error)
	GetMessage(ctx context.Context, id string) (domain.Message, error)
	GetReport(ctx context.Context, id string) (domain.FanoutReport, error)
	Defer(ctx context.Context, req domain.SendRequest) (string, error)
}

type API struct {
	Svc Messaging
}

func (a *API) Register(r *mux.Router) {
	r.HandleFunc("/v1/messages", a.handleSend).Methods(http.MethodPost)
	r.HandleFunc("/v1/messages/bulk", a.handleBulk).Methods(http.MethodPost)
	r.HandleFunc("/v1/messages/deferred", a.handleDefer).Methods(http.MethodPost)
	r.HandleFunc("/v1/messages/{id}", a.handleGetMessage).Methods(http.MethodGet)
	r.HandleFunc("/v1/fanouts/{id}", a.handleGetReport).Methods(http.MethodGet)
}

type BulkRequest struct {
	Channel    domain.Channel     `json:"channel"`
	Content    string             `json:"content"`
	Recipients []domain.Recipient `json:"recipients"`
}

// FailedDispatch is the 422 body for a dispatch that ended failed.
type FailedDispatch struct {
	Message domain.Message `json:"message"`
	Stage   domain.Stage   `json:"stage"`
	Error   string         `json:"error"`
}

type DeferredResponse struct {
	RequestID string `json:"requestId"`
}

func (a *API) handleSend(w http.ResponseWriter, r *http.Request) {
	var req domain.SendRequest
	if !decode(w, r, &req) {
		return
	}

	msg, err := a.Svc.SendMessage(r.Context(), req)
	var se *domain.StageError
	if errors.As(err, &se) {
		writeJSON(w, http.StatusUnprocessableEntity, FailedDispatch{Message: msg, Stage: se.Stage, Error: se.Err.Error()})
		return
	}
	if err != nil {
		a.fail(w, "send message failed", err, "contact_id", req.Contact.ID, "channel", req.Channel)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (a *API) handleBulk(w http.ResponseWriter, r *http.Request) {
	var req BulkRequest
	if !decode(w, r, &req) {
		return
	}
	report, err := a.Svc.SendToMany(r.Context(), domain.Template{Channel: req.Channel, Content: req.Content}, req.Recipients)
	if err != nil {
		a.fail(w, "bulk send failed", err, "channel", req.Channel, "recipients", len(req.Recipients))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleDefer(w http.ResponseWriter, r *http.Request) {
	var req domain.SendRequest
	if !decode(w, r, &req) {
		return
	}
	id, err := a.Svc.Defer(r.Context(), req)
	if err != nil {
		a.fail(w, "defer send failed", err, "contact_id", req.Contact.ID, "channel", req.Channel)
		return
	}
	writeJSON(w, http.StatusAccepted, DeferredResponse{RequestID: id})
}

func (a *API) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, ErrMissingID, http.StatusBadRequest)
		return
	}
	msg, err := a.Svc.GetMessage(r.Context(), id)
	if err != nil {
		a.fail(w, "get message failed", err, "id", id)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (a *API) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, ErrMissingID, http.StatusBadRequest)
		return
	}
	report, err := a.Svc.GetReport(r.Context(), id)
	if err != nil {
		a.fail(w, "get fanout report failed", err, "id", id)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) fail(w http.ResponseWriter, msg string, err error, attrs ...any) {
	status, body := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error(msg, append([]any{"err", err}, attrs...)...)
	}
	http.Error(w, body, status)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
