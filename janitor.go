package main

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// StartJanitor schedules pruning of submissions older than retention.
// The caller stops the returned cron on shutdown.
func StartJanitor(db *gorm.DB, schedule string, retention time.Duration) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		runJanitor(db, retention, time.Now())
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	log.Printf("[JANITOR] started (schedule=%q, retention=%s)", schedule, retention)
	return c, nil
}

func runJanitor(db *gorm.DB, retention time.Duration, now time.Time) {
	cutoff := now.Add(-retention)
	removed, err := pruneSubmissions(db, cutoff)
	if err != nil {
		log.Printf("[JANITOR] prune submissions: %v", err)
		return
	}
	takers, err := pruneIdleTakers(db, cutoff)
	if err != nil {
		log.Printf("[JANITOR] prune takers: %v", err)
		return
	}
	log.Printf("[JANITOR] removed %d submissions and %d idle takers older than %s", removed, takers, cutoff.Format(time.RFC3339))
}
