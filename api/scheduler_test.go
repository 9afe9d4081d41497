package api_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/5xRuby/daikichi-sub000/api"
	"github.com/5xRuby/daikichi-sub000/calendar"
	"github.com/5xRuby/daikichi-sub000/leave"
	"github.com/5xRuby/daikichi-sub000/leave/store/memory"
)

func newScheduler() *api.ProvisionScheduler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := leave.NewService(memory.NewTx(), calendar.Default(time.UTC), logger)
	ps := api.NewProvisionScheduler(svc, logger)
	ps.CheckInterval = time.Hour
	return ps
}

func TestProvisionScheduler_StopTwice(t *testing.T) {
	// GIVEN: a running scheduler
	// WHEN: stopping it twice
	// THEN: the second call is a no-op

	ps := newScheduler()
	ps.Start()
	ps.Stop()
	assert.NotPanics(t, ps.Stop)
}

func TestProvisionScheduler_StopWithoutStart(t *testing.T) {
	ps := newScheduler()
	assert.NotPanics(t, ps.Stop)
}

func TestProvisionScheduler_Disabled_StartAndStopAreNoops(t *testing.T) {
	ps := newScheduler()
	ps.Enabled = false
	ps.Start()
	assert.NotPanics(t, ps.Stop)
}
