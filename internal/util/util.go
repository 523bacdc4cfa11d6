package util

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

func NormalizePhone(p string) string {
	// TODO: E.164 validation once leads are imported with country codes
	return strings.ReplaceAll(strings.TrimSpace(p), " ", "")
}

// ULIDs sort by creation time, which keeps ledger indexes append-mostly.
func newID(prefix string) string {
	t := time.Now().UTC()
	return prefix + ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

func NewMessageID() string { return newID("msg_") }

func NewReportID() string { return newID("fan_") }

func NewRequestID() string { return newID("req_") }

func NowUTC() time.Time {
	return time.Now().UTC()
}
