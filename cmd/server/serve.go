package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"agrodoc/internal/classifier"
	"agrodoc/internal/config"
	"agrodoc/internal/db"
	"agrodoc/internal/diseaseinfo"
	"agrodoc/internal/http/router"
	"agrodoc/internal/imagestore"
	"agrodoc/internal/logger"
	"agrodoc/internal/metrics"
	"agrodoc/internal/notify"
	"agrodoc/internal/security"
	"agrodoc/internal/session"
	"agrodoc/internal/workflow"
)

const shutdownTimeout = 15 * time.Second

func runServe(parent context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	log := logger.Init(cfg.Logging)
	defer logger.Close()

	ctx, stop := signalContext(parent)
	defer stop()

	database, err := db.Init(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer database.Close()

	table, err := loadLabels(cfg.Model)
	if err != nil {
		return err
	}

	model, err := classifier.LoadTFLite(cfg.Model.Path, cfg.Model.Threads, logger.Module("classifier"))
	if err != nil {
		return fmt.Errorf("loading model: %w", err)
	}
	if err := checkInputShape(model, cfg.Model); err != nil {
		model.Close()
		return err
	}
	// NewService refuses a label table that does not match the model output.
	service, err := classifier.NewService(model, table, cfg.Model.InputMin, cfg.Model.InputMax)
	if err != nil {
		model.Close()
		return err
	}
	defer service.Close()

	catalog, err := diseaseinfo.Default()
	if err != nil {
		return err
	}
	if missing := catalog.Missing(table); len(missing) > 0 {
		log.Warn("labels without disease information fall back to generic text", "labels", missing)
	}

	images, err := imagestore.New(cfg.Uploads.Dir)
	if err != nil {
		return fmt.Errorf("preparing upload directory: %w", err)
	}

	sms, err := smsSender(cfg.SMS, log)
	if err != nil {
		return err
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		if m, err = metrics.New(registry); err != nil {
			return fmt.Errorf("registering metrics: %w", err)
		}
	}

	sessions := session.NewStore(cfg.Server.SessionTTL)
	sessions.OnEvicted(func(string) { m.SetActiveSessions(sessions.Count()) })

	ctrl, err := workflow.New(workflow.Deps{
		Store:      database,
		Classifier: service,
		Images:     images,
		Catalog:    catalog,
		SMS:        sms,
		Limiter:    security.NewLoginLimiter(cfg.Auth.LoginsPerMinute, cfg.Auth.LoginBurst),
		Metrics:    m,
		Logger:     logger.Module("workflow"),
	}, workflowOptions(cfg))
	if err != nil {
		return err
	}

	deps := router.Deps{
		Controller: ctrl,
		Sessions:   sessions,
		Cookies:    security.NewSessionStore(cfg.Server.SessionSecret, cfg.Server.SessionTTL, cfg.Server.SecureCookies),
		Metrics:    m,
		Logger:     logger.Module("http"),
	}
	if cfg.Metrics.Enabled {
		deps.MetricsPath = cfg.Metrics.Path
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router.Setup(deps),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting server", "addr", srv.Addr, "driver", database.Driver(), "labels", len(table))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		log.Info("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// checkInputShape refuses a model whose input tensor differs from the
// configured image size.
func checkInputShape(model classifier.Model, cfg config.ModelConfig) error {
	h, w := model.InputShape()
	if h != cfg.InputHeight || w != cfg.InputWidth {
		return fmt.Errorf("model expects %dx%d input but model.input_height/input_width are %dx%d",
			h, w, cfg.InputHeight, cfg.InputWidth)
	}
	return nil
}

func smsSender(cfg config.SMSConfig, log *slog.Logger) (notify.Sender, error) {
	if !cfg.Enabled {
		log.Info("sms delivery disabled, verification codes are logged")
		return notify.LogSender{Log: logger.Module("notify")}, nil
	}
	sender, err := notify.NewShoutrrrSender(cfg.URLs, cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("configuring sms: %w", err)
	}
	return sender, nil
}

func workflowOptions(cfg *config.Config) workflow.Options {
	opts := workflow.DefaultOptions()
	opts.PageSize = cfg.History.PageSize
	opts.MaxUploadBytes = cfg.Uploads.MaxBytes
	opts.Extensions = cfg.Uploads.Extensions
	opts.OTPTTL = cfg.Auth.OTPTTL
	opts.OTPLength = cfg.Auth.OTPLength
	return opts
}
