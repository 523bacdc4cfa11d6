package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outbound/internal/config"
	"outbound/internal/domain"
	"outbound/internal/providers/twilio"
)

func newMock(t *testing.T, failStatus int) *twilio.Client {
	t.Helper()
	s := &server{cfg: config.MockProviderConfig{AccountSID: "ACmock", AuthToken: "mock-token", FailStatus: failStatus}}
	ts := httptest.NewServer(s.router())
	t.Cleanup(ts.Close)
	return &twilio.Client{HTTP: ts.Client(), BaseURL: ts.URL}
}

func cred(token string) domain.Credential {
	return domain.Credential{Provider: twilio.Provider, Bundle: []byte(`{"accountSid":"ACmock","authToken":"` + token + `","phoneNumber":"+15550000000"}`)}
}

func TestMockAcceptsValidSend(t *testing.T) {
	c := newMock(t, 0)
	rcpt, err := c.Send(context.Background(), cred("mock-token"), "+15551234567", "hi")
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, rcpt.HTTPStatus)
	assert.Regexp(t, `^SM\d{30}$`, rcpt.ProviderMsgID)
}

func TestMockRejectsBadAuth(t *testing.T) {
	c := newMock(t, 0)
	_, err := c.Send(context.Background(), cred("wrong"), "+15551234567", "hi")
	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusUnauthorized, te.HTTPStatus)
	assert.Equal(t, "20003", te.Code)
}

func TestMockConfiguredFailure(t *testing.T) {
	c := newMock(t, http.StatusBadRequest)
	_, err := c.Send(context.Background(), cred("mock-token"), "+15551234567", "hi")
	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusBadRequest, te.HTTPStatus)
	assert.Equal(t, "21211", te.Code)
}
