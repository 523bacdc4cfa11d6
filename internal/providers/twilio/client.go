package twilio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"outbound/internal/domain"
	"outbound/internal/providers"
)

const (
	Provider       = "twilio"
	DefaultBaseURL = "https://api.twilio.com"
)

// Client sends SMS through the Messages REST resource. Account credentials
// come from the integrations row of each send, not from process config.
type Client struct {
	HTTP    *http.Client
	BaseURL string
}

// Bundle is the shape of integrations.credentials for provider "twilio".
type Bundle struct {
	AccountSID          string `json:"accountSid"`
	AuthToken           string `json:"authToken"`
	PhoneNumber         string `json:"phoneNumber"`
	MessagingServiceSID string `json:"messagingServiceSid,omitempty"`
}

func ParseBundle(raw json.RawMessage) (Bundle, error) {
	var b Bundle
	if len(raw) == 0 {
		return b, errors.New("empty credential bundle")
	}
	if err := json.Unmarshal(raw, &b); err != nil {
		return b, fmt.Errorf("decode credential bundle: %w", err)
	}
	if b.AccountSID == "" || b.AuthToken == "" {
		return b, errors.New("credential bundle missing accountSid or authToken")
	}
	if b.PhoneNumber == "" && b.MessagingServiceSID == "" {
		return b, errors.New("credential bundle has neither phoneNumber nor messagingServiceSid")
	}
	return b, nil
}

type sendResponse struct {
	Sid       string `json:"sid"`
	Status    string `json:"status"`
	ErrorCode *int   `json:"error_code"`
	// error responses
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *Client) Send(ctx context.Context, cred domain.Credential, to, body string) (providers.Receipt, error) {
	b, err := ParseBundle(cred.Bundle)
	if err != nil {
		return providers.Receipt{}, &domain.TransportError{Provider: Provider, Code: "invalid_credentials", Message: err.Error()}
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("Body", body)
	if b.MessagingServiceSID != "" {
		form.Set("MessagingServiceSid", b.MessagingServiceSID)
	} else {
		form.Set("From", b.PhoneNumber)
	}

	baseURL := strings.TrimRight(c.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	endpoint := baseURL + "/2010-04-01/Accounts/" + url.PathEscape(b.AccountSID) + "/Messages.json"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return providers.Receipt{}, &domain.TransportError{Provider: Provider, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.SetBasicAuth(b.AccountSID, b.AuthToken)

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(httpReq)
	if err != nil {
		te := &domain.TransportError{Provider: Provider, Err: err}
		if isTimeout(err) {
			te.Code = "timeout"
		}
		return providers.Receipt{}, te
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var out sendResponse
	_ = json.Unmarshal(raw, &out)

	// Twilio answers 201 Created; any 2xx is accepted
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		te := &domain.TransportError{Provider: Provider, HTTPStatus: resp.StatusCode, Message: out.Message}
		if out.Code != 0 {
			te.Code = strconv.Itoa(out.Code)
		}
		if te.Message == "" {
			te.Message = "Failed to send SMS"
		}
		return providers.Receipt{}, te
	}
	return providers.Receipt{Provider: Provider, ProviderMsgID: out.Sid, HTTPStatus: resp.StatusCode}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
