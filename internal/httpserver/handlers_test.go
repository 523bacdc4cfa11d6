package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outbound/internal/domain"
	"outbound/internal/service"
)

type fakeMessaging struct {
	msg       domain.Message
	sendErr   error
	report    domain.FanoutReport
	bulkErr   error
	deferID   string
	deferErr  error
	getErr    error
	reportErr error

	gotTemplate   domain.Template
	gotRecipients []domain.Recipient
}

func (f *fakeMessaging) SendMessage(context.Context, domain.SendRequest) (domain.Message, error) {
	return f.msg, f.sendErr
}

func (f *fakeMessaging) SendToMany(_ context.Context, tmpl domain.Template, rs []domain.Recipient) (domain.FanoutReport, error) {
	f.gotTemplate, f.gotRecipients = tmpl, rs
	return f.report, f.bulkErr
}

func (f *fakeMessaging) GetMessage(context.Context, string) (domain.Message, error) {
	return f.msg, f.getErr
}

func (f *fakeMessaging) GetReport(context.Context, string) (domain.FanoutReport, error) {
	return f.report, f.reportErr
}

func (f *fakeMessaging) Defer(context.Context, domain.SendRequest) (string, error) {
	return f.deferID, f.deferErr
}

func serve(t *testing.T, svc *fakeMessaging, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	h := NewAPI(&API{Svc: svc}, time.Second)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const sendBody = `{"contact":{"id":"cust_1","type":"customer"},"channel":"sms","content":"hi"}`

func TestSendOK(t *testing.T) {
	svc := &fakeMessaging{msg: domain.Message{ID: "msg_1", Status: domain.StatusSent}}
	rec := serve(t, svc, http.MethodPost, "/v1/messages", sendBody)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	var got domain.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "msg_1", got.ID)
}

func TestSendFailedDispatchIs422(t *testing.T) {
	svc := &fakeMessaging{
		msg:     domain.Message{ID: "msg_2", Status: domain.StatusFailed},
		sendErr: &domain.StageError{Stage: domain.StageTransport, Err: domain.NotImplemented("resend")},
	}
	rec := serve(t, svc, http.MethodPost, "/v1/messages", sendBody)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var got FailedDispatch
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "msg_2", got.Message.ID)
	assert.Equal(t, domain.StageTransport, got.Stage)
	assert.Contains(t, got.Error, "not implemented")
}

func TestSendBadInput(t *testing.T) {
	rec := serve(t, &fakeMessaging{}, http.MethodPost, "/v1/messages", "{")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), ErrInvalidJSON)

	svc := &fakeMessaging{sendErr: fmt.Errorf("%w: content (required)", domain.ErrInvalidRequest)}
	rec = serve(t, svc, http.MethodPost, "/v1/messages", sendBody)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "content (required)")
}

func TestBulk(t *testing.T) {
	svc := &fakeMessaging{report: domain.FanoutReport{ID: "fan_1", Total: 2, Succeeded: 1, Failed: 1}}
	body := `{"channel":"sms","content":"hi","recipients":[{"contact":{"id":"a","type":"lead"},"name":"A"},{"contact":{"id":"b","type":"customer"}}]}`
	rec := serve(t, svc, http.MethodPost, "/v1/messages/bulk", body)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.ChannelSMS, svc.gotTemplate.Channel)
	require.Len(t, svc.gotRecipients, 2)
	assert.Equal(t, "A", svc.gotRecipients[0].Name)

	svc = &fakeMessaging{bulkErr: domain.ErrNoRecipients}
	rec = serve(t, svc, http.MethodPost, "/v1/messages/bulk", `{"channel":"sms","content":"hi"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDefer(t *testing.T) {
	rec := serve(t, &fakeMessaging{deferID: "req_1"}, http.MethodPost, "/v1/messages/deferred", sendBody)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"requestId":"req_1"}`, rec.Body.String())

	rec = serve(t, &fakeMessaging{deferErr: service.ErrQueueDisabled}, http.MethodPost, "/v1/messages/deferred", sendBody)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetMessage(t *testing.T) {
	rec := serve(t, &fakeMessaging{getErr: fmt.Errorf("message x: %w", domain.ErrNotFound)}, http.MethodGet, "/v1/messages/x", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, &fakeMessaging{getErr: errors.New("conn refused")}, http.MethodGet, "/v1/messages/x", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "conn refused")
}

func TestGetReport(t *testing.T) {
	rec := serve(t, &fakeMessaging{report: domain.FanoutReport{ID: "fan_1"}}, http.MethodGet, "/v1/fanouts/fan_1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, &fakeMessaging{reportErr: service.ErrReportsDisabled}, http.MethodGet, "/v1/fanouts/fan_1", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReadyzReportsEveryFailure(t *testing.T) {
	h := Readyz(time.Second,
		ReadyzCheck{Name: "postgres", Check: func(context.Context) error { return errors.New("down") }},
		ReadyzCheck{Name: "redis", Check: func(context.Context) error { return errors.New("refused") }},
		ReadyzCheck{Name: "sqs", Check: func(context.Context) error { return nil }},
	)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "postgres: down")
	assert.Contains(t, rec.Body.String(), "redis: refused")
	assert.NotContains(t, rec.Body.String(), "sqs")
}
