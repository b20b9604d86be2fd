// Package app wires the service together: configuration, logging, the
// dispatcher, the pipeline stages, and the HTTP ingress. Everything is
// constructed here and handed down as explicit dependencies; no component
// reaches for a global.
package app

import (
	"context"
	"time"

	"commentrelay/internal/backend"
	"commentrelay/internal/config"
	"commentrelay/internal/dispatch"
	"commentrelay/internal/notify"
	"commentrelay/internal/pipeline"
	"commentrelay/internal/server"
	"commentrelay/internal/storage"
	"commentrelay/internal/token"
	"commentrelay/pkg/logx"
	"commentrelay/pkg/textfilter"
)

type App struct {
	cfgm *config.Manager
	logs *logx.Service
	log  logx.Logger

	bus     *dispatch.Dispatcher
	tokens  *token.Cache
	client  *backend.Client
	journal *storage.Journal

	storeQueue *pipeline.RetryQueue
	prQueue    *pipeline.RetryQueue
	drains     *pipeline.Drains

	srv *server.Server
}

func New(cfgPath string) (*App, error) {
	bootLog := logx.NewConsole("INFO")
	cfgm := config.NewManager(cfgPath, bootLog.With(logx.String("comp", "config")))
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logs, log := logx.New(logCfg(cfg))
	log = log.With(logx.String("comp", "app"))

	a := &App{cfgm: cfgm, logs: logs, log: log}
	if err := a.build(cfg, logs.Logger()); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) build(cfg *config.Config, root logx.Logger) error {
	oauthTimeout, err := config.ParseDurationOrDefault("oauth.timeout", cfg.OAuth.Timeout, 15*time.Second)
	if err != nil {
		return err
	}
	requestTimeout, err := config.ParseDurationOrDefault("pipeline.request_timeout", cfg.Pipeline.RequestTimeout, 30*time.Second)
	if err != nil {
		return err
	}
	storeEvery, err := config.ParseDurationOrDefault("pipeline.store_drain_every", cfg.Pipeline.StoreDrainEvery, 5*time.Second)
	if err != nil {
		return err
	}
	prEvery, err := config.ParseDurationOrDefault("pipeline.pullrequest_drain_every", cfg.Pipeline.PullRequestDrainEvery, 15*time.Second)
	if err != nil {
		return err
	}

	a.bus = dispatch.New(dispatch.Config{
		Workers:   cfg.Pipeline.Workers,
		QueueSize: cfg.Pipeline.QueueSize,
	}, root.With(logx.String("comp", "dispatch")))

	a.tokens = token.NewCache(token.Config{
		Site:         cfg.OAuth.Site,
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret,
		Timeout:      oauthTimeout,
	}, root.With(logx.String("comp", "token")))

	a.client = backend.NewClient(backend.Config{
		BaseURL:    cfg.Repository.APIBase,
		Repository: cfg.Repository.URL,
		MainBranch: cfg.Repository.MainBranch,
		Timeout:    requestTimeout,
	}, root.With(logx.String("comp", "backend")))

	var audit pipeline.Auditor = pipeline.NopAuditor{}
	if cfg.Storage != nil {
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 2*time.Second)
		if err != nil {
			return err
		}
		j, err := storage.Open(storage.Config{
			Path:        cfg.Storage.Path,
			BusyTimeout: busy,
		}, root.With(logx.String("comp", "storage")))
		if err != nil {
			return err
		}
		a.journal = j
		audit = j
		a.log.Info("audit journal enabled", logx.String("path", cfg.Storage.Path))
	}

	ceiling := cfg.Pipeline.RetryCeiling
	a.storeQueue = pipeline.NewRetryQueue("store", dispatch.TopicNewComment, ceiling,
		a.bus, audit, root.With(logx.String("comp", "retry")))
	a.prQueue = pipeline.NewRetryQueue("pullrequest", dispatch.TopicPullRequest, ceiling,
		a.bus, audit, root.With(logx.String("comp", "retry")))

	storeStage := pipeline.NewStoreStage(a.tokens, a.client, a.bus, a.storeQueue, audit,
		requestTimeout, root.With(logx.String("comp", "store")))
	prStage := pipeline.NewPullRequestStage(a.tokens, a.client, a.prQueue, audit,
		requestTimeout, root.With(logx.String("comp", "pullrequest")))

	a.bus.Subscribe(dispatch.TopicNewComment, "store", storeStage.HandleNew)
	a.bus.Subscribe(dispatch.TopicPullRequest, "pullrequest", prStage.HandlePullRequest)

	if notifier := a.buildNotifier(cfg, root); notifier != nil {
		a.bus.Subscribe(dispatch.TopicStored, "notify", notifier.HandleStored)
		a.bus.Subscribe(dispatch.TopicFailed, "notify", notifier.HandleFailed)
	}

	a.drains = pipeline.NewDrains(root.With(logx.String("comp", "drains")))
	a.drains.Add("store", storeEvery, a.storeQueue)
	a.drains.Add("pullrequest", prEvery, a.prQueue)

	readTimeout, err := config.ParseDurationOrDefault("server.read_timeout", cfg.Server.ReadTimeout, 15*time.Second)
	if err != nil {
		return err
	}
	writeTimeout, err := config.ParseDurationOrDefault("server.write_timeout", cfg.Server.WriteTimeout, 15*time.Second)
	if err != nil {
		return err
	}
	captcha := &textfilter.CaptchaVerifier{Secret: cfg.Server.CaptchaSecret}
	a.srv = server.New(server.Config{
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		StaticDir:      cfg.Server.StaticDir,
		ReadTimeout:    readTimeout,
		WriteTimeout:   writeTimeout,
	}, a.bus, captcha, root.With(logx.String("comp", "server")))

	return nil
}

// buildNotifier assembles the configured notification channels. With no
// credentials at all the stage is not even subscribed.
func (a *App) buildNotifier(cfg *config.Config, root logx.Logger) *notify.Stage {
	var channels []notify.Channel
	if cfg.Push.Token != "" && cfg.Push.User != "" {
		channels = append(channels, notify.NewPushoverChannel(cfg.Push.Token, cfg.Push.User, cfg.Push.APIBase))
	}
	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
		tg, err := notify.NewTelegramChannel(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			a.log.Warn("telegram channel unavailable", logx.Err(err))
		} else {
			channels = append(channels, tg)
		}
	}
	if len(channels) == 0 {
		a.log.Info("notifications disabled (no channel configured)")
		return nil
	}
	return notify.NewStage(channels, cfg.Push.RatePerSec, a.client.SourceURL(),
		root.With(logx.String("comp", "notify")))
}

func logCfg(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console || !cfg.Logging.File.Enabled,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func (a *App) Start(ctx context.Context) error {
	a.bus.Start(ctx)
	a.drains.Start(ctx)
	if err := a.srv.Start(ctx); err != nil {
		return err
	}

	// Config hot reload: only the logging knobs are applied at runtime;
	// pipeline and endpoint changes take a restart.
	go func() {
		err := a.cfgm.Watch(ctx, func(cfg *config.Config) {
			a.logs.Apply(logCfg(cfg))
		})
		if err != nil {
			a.log.Warn("config watch ended", logx.Err(err))
		}
	}()

	a.log.Info("comment relay started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	err := a.srv.Stop(ctx)
	a.drains.Stop(ctx)
	a.bus.Stop(ctx)
	if a.journal != nil {
		_ = a.journal.Close()
	}
	_ = a.logs.Close()
	return err
}
