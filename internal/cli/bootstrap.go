package cmd

import (
	"fmt"

	"github.com/rohmanhakim/lore-crawler/internal/categorize"
	"github.com/rohmanhakim/lore-crawler/internal/config"
	"github.com/rohmanhakim/lore-crawler/internal/crawler"
	"github.com/rohmanhakim/lore-crawler/internal/fetcher"
	"github.com/rohmanhakim/lore-crawler/internal/logging"
	"github.com/rohmanhakim/lore-crawler/internal/robots"
	"github.com/rohmanhakim/lore-crawler/internal/scheduler"
	"github.com/rohmanhakim/lore-crawler/internal/score"
	"github.com/rohmanhakim/lore-crawler/internal/search"
	"github.com/rohmanhakim/lore-crawler/internal/store"
	"github.com/rohmanhakim/lore-crawler/internal/tools"
)

// bootstrap wires one Core from the configuration: store, classifier,
// scorer, crawler, scheduler, and search dispatcher. The caller owns
// shutdown via the returned closer.
func bootstrap() (*tools.Core, func(), error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if dbPath != "" {
		cfg = cfg.WithDBPath(dbPath)
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.LogLevel()
	logCfg.LogDir = cfg.LogDir()
	if err := logging.Init(logCfg); err != nil {
		return nil, nil, fmt.Errorf("logging init failed: %w", err)
	}

	st, err := store.Open(cfg.DBPath(), logging.Component("store"))
	if err != nil {
		return nil, nil, err
	}

	robot := robots.NewCachedRobot(logging.Component("robots"))
	robot.Init(cfg.UserAgent())

	engine := categorize.NewEngine(logging.Component("categorize"))
	scorer := score.NewScorer(st, logging.Component("score"))

	fetchOpts := fetcher.DefaultOptions()
	fetchOpts.Timeout = cfg.FetchTimeout()
	fetchOpts.MaxRedirects = cfg.MaxRedirects()
	fetchOpts.MaxBodyBytes = cfg.MaxBodyBytes()
	fetchOpts.MaxAttempts = cfg.MaxAttempts()

	crawl := crawler.New(st, engine, scorer, robot,
		logging.Component("crawler"), cfg.UserAgent(), fetchOpts)

	sched := scheduler.New(st, crawl, logging.Component("scheduler"), scheduler.Options{
		Workers:       cfg.MaxConcurrentTasks(),
		TaskTimeout:   cfg.TaskTimeout(),
		RetryAttempts: cfg.RetryAttempts(),
	})

	var providers []search.Provider
	if cfg.GoogleAPIKey() != "" && cfg.GoogleCSEID() != "" {
		providers = append(providers, search.NewGoogleProvider(cfg.GoogleAPIKey(), cfg.GoogleCSEID()))
	}
	if cfg.BingAPIKey() != "" {
		providers = append(providers, search.NewBingProvider(cfg.BingAPIKey()))
	}
	dispatcher := search.NewDispatcher(providers, st, logging.Component("search"), search.DispatcherOptions{
		FilterThreshold: cfg.ResultFilteringThreshold(),
		HourlyLimit:     cfg.SearchRateLimit(),
		Deadline:        cfg.SearchTimeout(),
	})

	core := tools.NewCore(st, crawl, sched, dispatcher, cfg, logging.Component("tools"))

	closer := func() {
		st.Close()
	}
	return core, closer, nil
}
