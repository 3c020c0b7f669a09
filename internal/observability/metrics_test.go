package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/api/v1/auth/login", "POST", 200, time.Millisecond)
	m.RecordRequest("/api/v1/auth/login", "POST", 200, time.Millisecond)
	m.RecordError("/api/v1/auth/login", "POST", "INVALID_CREDENTIALS")
	m.RecordAuth(AuthOutcomeAnonymous)

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.Requests["/api/v1/auth/login|POST|200"])
	assert.Equal(t, int64(1), snap.Errors["/api/v1/auth/login|POST|INVALID_CREDENTIALS"])
	assert.Equal(t, int64(1), snap.Auth[AuthOutcomeAnonymous])

	m.RecordAuth(AuthOutcomeAnonymous)
	assert.Equal(t, int64(1), snap.Auth[AuthOutcomeAnonymous], "snapshot must be a copy")
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, 0)
	m.RecordError("/", "GET", "X")
	m.RecordAuth(AuthOutcomeAuthenticated)
	assert.Empty(t, m.Snapshot().Requests)
}
