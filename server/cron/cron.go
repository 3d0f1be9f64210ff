package cron

import (
	"time"

	"github.com/go-co-op/gocron"
)

// NewScheduler builds a gocron scheduler in the configured time zone,
// falling back to UTC when the zone cannot be loaded.
func NewScheduler(timeZone string) *gocron.Scheduler {
	location, err := time.LoadLocation(timeZone)
	if err != nil {
		location = time.UTC
	}

	scheduler := gocron.NewScheduler(location)
	scheduler.TagsUnique()

	return scheduler
}
