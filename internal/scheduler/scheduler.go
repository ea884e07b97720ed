package scheduler

import (
	"github.com/mdouchement/imgstore/internal/cache"
	"github.com/mdouchement/logger"
	"github.com/robfig/cron/v3"
)

// A Controller is an Iversion Of Control pattern used to init the scheduler package.
type Controller struct {
	Logger        logger.Logger
	Cache         *cache.Cache
	Specification string
}

// Start lauches the scheduler asynchronously.
func Start(c Controller) {
	cron := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))

	log := c.Logger.WithPrefix("[scheduler]")

	_, err := cron.AddFunc(c.Specification, func() {
		log := c.Logger.WithPrefix("[cache]")

		if n := c.Cache.Sweep(); n > 0 {
			log.Infof("Evicted %d expired payloads", n)
		}
	})
	if err != nil {
		panic(err)
	}
	log.Info("Cache sweep task registred")

	cron.Start()
	log.Info("Scheduler is running")
}
