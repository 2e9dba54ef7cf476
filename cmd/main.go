package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"giveaway/internal/auth"
	"giveaway/internal/config"
	"giveaway/internal/discard"
	"giveaway/internal/handlers"
	"giveaway/internal/metrics"
	"giveaway/internal/models"
	"giveaway/internal/services"
	"giveaway/internal/twitch"
)

func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	defer logger.Init("giveaway", true, false, io.Discard).Close()
	if cfg.Debug {
		logger.SetLevel(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		logger.Errorf("%v", err)
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	// 1. Metrics registry shared by the pipeline and the Twitch client.
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	// 2. Twitch client behind the middleware chain.
	client, err := newTwitchClient(cfg, m)
	if err != nil {
		return err
	}

	// 3. Draw engine, reproducible when a seed is given.
	var engine *services.DrawEngine
	if cfg.Seed != nil {
		logger.Infof("Using seed %d", *cfg.Seed)
		engine = services.NewSeededDrawEngine(*cfg.Seed)
	} else if engine, err = services.NewRandomDrawEngine(); err != nil {
		return err
	}

	// 4. Giveaway service.
	service := services.NewGiveawayService(services.Options{
		Channel:        cfg.Channel,
		Sources:        cfg.SourceSet(),
		ExtraTickets:   cfg.ExtraTickets,
		DropModerators: cfg.DropModerators,
		MaxPages:       cfg.Twitch.MaxPages,
	}, client, discard.FileSource{Path: cfg.DiscardedPath}, engine, m)

	if cfg.Serve != "" {
		return serve(ctx, cfg, service, reg)
	}
	return drawOnce(ctx, cfg, service)
}

func newTwitchClient(cfg config.Config, m *metrics.Metrics) (*twitch.Client, error) {
	httpClient := &http.Client{Timeout: cfg.Twitch.Timeout}
	doer := twitch.Chain(httpClient,
		twitch.TracingMiddleware("giveaway/twitch"),
		twitch.MetricsMiddleware(m),
		twitch.RateLimitMiddleware(rate.Limit(cfg.Twitch.RequestsPerSecond), cfg.Twitch.Burst),
		twitch.RetryMiddleware(cfg.Twitch.Retries, cfg.Twitch.BackoffBase, cfg.Twitch.BackoffMax),
	)

	creds := auth.Credentials{ClientID: cfg.Twitch.ClientID, ClientSecret: cfg.Twitch.ClientSecret}
	if creds.ClientID == "" || creds.ClientSecret == "" {
		fromFile, err := auth.LoadAppFile(cfg.AppFile)
		switch {
		case err == nil:
			creds = fromFile
		case cfg.Followers || cfg.Subs:
			return nil, fmt.Errorf("twitch application credentials: %w", err)
		default:
			logger.V(1).Infof("No application credentials: %v", err)
		}
	}

	twitchCfg := twitch.Config{
		ClientID:    creds.ClientID,
		HelixURL:    cfg.Twitch.HelixURL,
		ChattersURL: cfg.Twitch.ChattersURL,
		PageSize:    cfg.Twitch.PageSize,
	}
	if creds.ClientID != "" {
		twitchCfg.AppAuth = auth.NewAppTokenManager(auth.ClientCredentials(httpClient, cfg.Twitch.TokenURL, creds))
	}
	if cfg.Twitch.UserToken != "" {
		twitchCfg.UserAuth = auth.StaticToken(cfg.Twitch.UserToken)
	}
	return twitch.NewClient(doer, twitchCfg), nil
}

func drawOnce(ctx context.Context, cfg config.Config, service *services.GiveawayService) error {
	if _, err := service.Prepare(ctx); err != nil {
		return err
	}

	if cfg.Pause {
		logger.Infof("Press Enter to continue")
		_, _ = bufio.NewReader(os.Stdin).ReadString('\n')
	}

	if cfg.Distribution {
		report, err := service.Distribution(cfg.Trials)
		if errors.Is(err, models.ErrEmptyPool) {
			logger.Infof("Tickets list is empty: select followers, viewers or subs")
			return nil
		}
		if err != nil {
			return err
		}
		logger.Infof("Distribution over %d draws from %d tickets", report.Trials, report.PoolSize)
		for _, row := range report.Rows {
			logger.Infof("%s: %d draws (observed %.4f, expected %.4f)", row.Ticket, row.Draws, row.Observed, row.Expected)
		}
		return nil
	}

	result, err := service.Draw()
	if errors.Is(err, models.ErrEmptyPool) {
		logger.Infof("Tickets list is empty: select followers, viewers or subs")
		return nil
	}
	if err != nil {
		return err
	}
	logger.Infof("Congrats %s you won the giveaway", result.Winner)
	return nil
}

func serve(ctx context.Context, cfg config.Config, service *services.GiveawayService, reg *prometheus.Registry) error {
	if _, err := service.Prepare(ctx); err != nil {
		logger.Warningf("Initial pool build failed, POST /refresh to retry: %v", err)
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	handlers.NewHTTPHandler(service, handlers.NewHub()).RegisterRoutes(router)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	httpSrv := &http.Server{
		Addr:    cfg.Serve,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Server starting on %s", cfg.Serve)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Infof("Shutting down server")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
