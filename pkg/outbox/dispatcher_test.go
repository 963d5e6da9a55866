package outbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testConfig() Config {
	return Config{
		WorkerID:           "worker-1",
		PollInterval:       1 * time.Second,
		PollIntervalJitter: 500 * time.Millisecond,
		LockTTL:            30 * time.Second,
		BatchSize:          50,
		AuditIndexPrefix:   "feedpulse-audit",
	}
}

func TestDispatcher_PollIntervalWithinJitterRange(t *testing.T) {
	d := New(nil, nil, nil, testConfig())

	for i := 0; i < 200; i++ {
		v := d.pollInterval()
		assert.GreaterOrEqual(t, v, 500*time.Millisecond)
		assert.LessOrEqual(t, v, 1500*time.Millisecond)
	}
}

func TestDispatcher_PollIntervalNoJitter(t *testing.T) {
	cfg := testConfig()
	cfg.PollIntervalJitter = 0
	d := New(nil, nil, nil, cfg)

	for i := 0; i < 10; i++ {
		assert.Equal(t, time.Second, d.pollInterval())
	}
}

func TestBackoff_MatchesSchedule(t *testing.T) {
	assert.Equal(t, time.Second, backoff(1))
	assert.Equal(t, 5*time.Second, backoff(2))
	assert.Equal(t, 15*time.Second, backoff(3))
	assert.Equal(t, 60*time.Second, backoff(4))
	assert.Equal(t, 60*time.Second, backoff(9))
}
