package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIDs(t *testing.T) {
	a, b := NewMessageID(), NewMessageID()
	assert.True(t, strings.HasPrefix(a, "msg_"))
	assert.NotEqual(t, a, b)
	assert.Len(t, a, len("msg_")+26)

	assert.True(t, strings.HasPrefix(NewReportID(), "fan_"))
	assert.True(t, strings.HasPrefix(NewRequestID(), "req_"))
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "+15551234567", NormalizePhone(" +1 555 123 4567 "))
}
