package store

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper periodically removes inactive rooms. It is a scheduled job owned
// by the process lifecycle: Start begins the schedule, Stop halts it
// deterministically during shutdown and tests.
type Sweeper struct {
	store    *Store
	ttl      time.Duration
	interval time.Duration
	log      *zap.Logger
	cron     *cron.Cron
}

func NewSweeper(s *Store, ttl, interval time.Duration, log *zap.Logger) *Sweeper {
	return &Sweeper{
		store:    s,
		ttl:      ttl,
		interval: interval,
		log:      log,
		cron:     cron.New(),
	}
}

func (sw *Sweeper) Start() error {
	_, err := sw.cron.AddFunc(fmt.Sprintf("@every %s", sw.interval), sw.RunOnce)
	if err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	sw.cron.Start()
	sw.log.Info("inactivity sweeper started",
		zap.Duration("interval", sw.interval),
		zap.Duration("ttl", sw.ttl))
	return nil
}

// RunOnce performs a single sweep pass.
func (sw *Sweeper) RunOnce() {
	removed := sw.store.SweepInactive(sw.ttl)
	if len(removed) > 0 {
		sw.log.Info("swept inactive rooms", zap.Strings("rooms", removed))
	}
}

func (sw *Sweeper) Stop() {
	if sw.cron != nil {
		sw.cron.Stop()
	}
}
