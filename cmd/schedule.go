package cmd

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// cronParser accepts 5-field expressions and descriptors like @every 15m.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type resetter interface {
	Reset()
}

// startCacheReset clears the phone and tenant caches on schedule. An empty
// schedule returns a nil scheduler.
func startCacheReset(schedule string, caches ...resetter) (*cron.Cron, error) {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		return nil, nil
	}

	c := cron.New(cron.WithParser(cronParser))
	_, err := c.AddFunc(schedule, func() {
		for _, cache := range caches {
			cache.Reset()
		}
		log.Info().Int("caches", len(caches)).Msg("scheduled cache reset")
	})
	if err != nil {
		return nil, fmt.Errorf("cache reset schedule %q: %w", schedule, err)
	}
	c.Start()
	return c, nil
}
