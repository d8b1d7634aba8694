package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"interviewroom/internal/core/ports"
	"interviewroom/internal/core/services"
	httphandlers "interviewroom/internal/handlers/http"
	"interviewroom/internal/infrastructure/distributed"
	"interviewroom/internal/infrastructure/monitoring"
	"interviewroom/internal/infrastructure/signal"
	"interviewroom/internal/infrastructure/webrtc"
	"interviewroom/pkg/tracing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const healthCheckTimeout = 3 * time.Second

func NewServeCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the call room",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := ossignal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := deps.open()
			if err != nil {
				return err
			}
			defer rt.Close()

			return serve(ctx, rt)
		},
	}
}

func serve(ctx context.Context, rt *runtime) error {
	cfg := rt.cfg
	log := rt.logger.Sugar()
	instanceID := uuid.NewString()

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "interviewroom",
		JaegerURL:   cfg.Tracing.JaegerEndpoint,
		Environment: cfg.Environment,
		SampleRate:  cfg.Tracing.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	meetings, err := rt.repos.CreateMeetingRepository()
	if err != nil {
		return fmt.Errorf("create meeting repository: %w", err)
	}
	credentials, persistent := rt.credentialStore()
	if !persistent {
		log.Infow("Session credential kept in memory; it is lost on restart")
	}
	auth := newAuthService(cfg, cfg.Auth.JWTSecret)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewPrometheusCollector(registry)

	health := monitoring.NewHealthChecker()
	health.AddDependencyCheck("meetings", rt.repos, healthCheckTimeout)

	var publisher ports.StatusPublisher
	if client := rt.repos.RedisClient(); client != nil {
		health.AddRedisCheck(client, healthCheckTimeout)
		bus := distributed.NewEventBus(client, cfg.Redis.StatusChannel, instanceID, uuid.NewString, log.Named("events"))
		defer bus.Close()
		publisher = bus
	}

	engine, err := webrtc.NewEngine(webrtc.ConfigFrom(cfg), log.Named("transport"))
	if err != nil {
		return fmt.Errorf("create transport engine: %w", err)
	}
	renderer := webrtc.NewTrackRenderer(cfg.Call.AutoMountRenderTargets, log.Named("renderer"))

	formatter, err := services.NewFormatterFor(cfg.Display.Language, cfg.Display.TimeZone)
	if err != nil {
		return fmt.Errorf("display settings: %w", err)
	}
	dirOpts := directoryOptions(cfg)
	feed := services.NewFeedService(meetings, services.SystemClock{}, formatter, dirOpts, log.Named("feed"))

	rooms := services.NewRoomService(services.RoomServiceConfig{
		Controller:       controllerConfig(cfg),
		Directory:        dirOpts,
		StrictMembership: cfg.IsProduction(),
	}, services.RoomDeps{
		Meetings:    meetings,
		Engine:      engine,
		Credentials: credentials,
		Renderer:    renderer,
		Publisher:   publisher,
		Metrics:     metrics,
		Clock:       services.SystemClock{},
		Logger:      log.Named("call"),
	})

	statusOpts := signal.DefaultOptions()
	statusOpts.AllowedOrigins = cfg.Server.AllowedOrigins
	if size := cfg.RateLimiting.WebSocket.MaxMessageSizeBytes; size > 0 {
		statusOpts.MaxMessageSize = size
	}
	status := signal.NewStatusServer(statusOpts, renderer, log.Named("status"))

	router := httphandlers.NewRouter(httphandlers.RouterDeps{
		Config:   cfg,
		Meetings: httphandlers.NewMeetingHandler(feed, meetings, cfg.IsProduction()),
		Calls:    httphandlers.NewCallHandler(rooms, status, renderer, log.Named("http")),
		Auth:     auth,
		Health:   health,
		Requests: metrics,
		Gatherer: registry,
		Logger:   rt.logger,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infow("Coordinator listening",
			"address", cfg.Server.Address,
			"environment", cfg.Environment,
			"instance_id", instanceID,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Infow("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// leave the call first so the backend hears about the departure
		if err := rooms.Close(shutdownCtx); err != nil {
			log.Warnw("Failed to close call room", "error", err)
		}
		status.CloseAll()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warnw("Failed to flush traces", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Infow("Coordinator stopped")
	return nil
}
