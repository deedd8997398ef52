package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/sitewatch/internal/alert"
	"github.com/hamed0406/sitewatch/internal/config"
	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/httpapi"
	"github.com/hamed0406/sitewatch/internal/logging"
	"github.com/hamed0406/sitewatch/internal/notify"
	"github.com/hamed0406/sitewatch/internal/probe"
	"github.com/hamed0406/sitewatch/internal/queue"
	"github.com/hamed0406/sitewatch/internal/registry"
	"github.com/hamed0406/sitewatch/internal/repo"
	"github.com/hamed0406/sitewatch/internal/repo/memory"
	"github.com/hamed0406/sitewatch/internal/repo/postgres"
	"github.com/hamed0406/sitewatch/internal/scheduler"
)

func main() {
	if err := config.LoadDotEnv(os.Getenv("ENV_FILE")); err != nil {
		log.Fatal(err)
	}
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("monitor_exit", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	dial := queue.NewDialer(cfg.QueueURL, cfg.QueueName)
	publisher := alert.NewPublisher(logger.Named("publisher"), dial)
	defer func() { _ = publisher.Close() }()

	loader := registry.NewLoader(logger.Named("registry"), store, cfg.RegistryRefresh)
	if err := loader.Refresh(ctx); err != nil {
		// keep going; the next sweep retries
		logger.Warn("registry_initial_load_failed", zap.Error(err))
	}

	checker := probe.NewHTTPChecker(cfg.ProbeTimeout)
	checker.DNS = cfg.DNSDiagnose

	sched := scheduler.New(
		logger.Named("scheduler"),
		loader,
		checker,
		scheduler.NewRecorder(store),
		publisher,
		scheduler.Options{
			Interval:    cfg.CheckInterval,
			Timeout:     cfg.ProbeTimeout,
			Concurrency: cfg.MaxConcurrent,
			Grace:       cfg.ShutdownGrace,
		},
	)

	engine := alert.NewEngine(
		logger.Named("engine"),
		store,
		notifier(cfg, logger),
		dial,
		alert.EngineOptions{
			Policy:       alert.Policy{Threshold: cfg.DownThreshold, Cooldown: cfg.AlertCooldown},
			ReconnectMax: cfg.ReconnectMax,
		},
	)

	logger.Info("monitor_start",
		zap.Duration("interval", cfg.CheckInterval),
		zap.Duration("probe_timeout", cfg.ProbeTimeout),
		zap.Int("threshold", cfg.DownThreshold),
		zap.Duration("cooldown", cfg.AlertCooldown),
		zap.String("queue", cfg.QueueName),
		zap.Int("endpoints", len(loader.Snapshot())),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(gctx) })
	g.Go(func() error { return engine.Run(gctx) })

	if cfg.OpsAddr != "" && cfg.OpsAddr != "off" {
		api := httpapi.NewServer(logger.Named("ops"), store, sched, loader)
		srv := &http.Server{
			Addr:              cfg.OpsAddr,
			Handler:           api.Router(cfg.OpsRatePerMin, cfg.OpsRateBurst),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("ops_listen", zap.String("addr", cfg.OpsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("ops server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	err = g.Wait()
	logger.Info("monitor_stopped")
	return err
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (repo.Store, error) {
	if cfg.DatabaseURL == "" {
		st := memory.New()
		if err := seedDev(st, cfg.DevEndpoints); err != nil {
			return nil, err
		}
		logger.Warn("store_memory", zap.String("hint", "set DATABASE_URL for persistent history"))
		return st, nil
	}
	st, err := postgres.New(ctx, cfg.DatabaseURL, logger.Named("postgres"))
	if err != nil {
		return nil, err
	}
	if err := st.EnsureSchema(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// notifier builds the email path. Missing providers are skipped; with none
// configured every send fails and is logged.
func notifier(cfg config.Config, logger *zap.Logger) *notify.Alerts {
	var mailer notify.Mailer
	switch {
	case cfg.ResendAPIKey != "":
		mailer = notify.NewResend(cfg.ResendAPIKey, cfg.MailFrom)
	case cfg.SMTP.Host != "":
		mailer = notify.NewSMTP(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.MailFrom)
	default:
		logger.Warn("mail_not_configured", zap.String("hint", "set RESEND_API_KEY or SMTP_HOST"))
	}

	var ops notify.Notifier
	if s := notify.NewSlack(cfg.SlackWebhook); s != nil {
		ops = notify.Multi{s}
	}
	return notify.NewAlerts(logger.Named("notify"), mailer, ops)
}

// seedDev parses "url=email,url=email" into endpoints dev-1, dev-2, ...
func seedDev(st *memory.Store, list string) error {
	var errs error
	n := 0
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		url, email, _ := strings.Cut(item, "=")
		n++
		errs = multierr.Append(errs, st.AddEndpoint(domain.Endpoint{
			ID:         domain.EndpointID(fmt.Sprintf("dev-%d", n)),
			URL:        strings.TrimSpace(url),
			OwnerEmail: strings.TrimSpace(email),
		}))
	}
	if errs != nil {
		return fmt.Errorf("DEV_ENDPOINTS: %w", errs)
	}
	return nil
}
