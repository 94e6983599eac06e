package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/autovendas/lead-gateway/internal/analytics"
	"github.com/autovendas/lead-gateway/internal/automation"
	"github.com/autovendas/lead-gateway/internal/catalog"
	"github.com/autovendas/lead-gateway/internal/config"
	gateway "github.com/autovendas/lead-gateway/internal/gateways"
	"github.com/autovendas/lead-gateway/internal/handlers"
	"github.com/autovendas/lead-gateway/internal/scoring"
	"github.com/autovendas/lead-gateway/internal/services"
	"github.com/autovendas/lead-gateway/internal/store"
	xhttp "github.com/autovendas/lead-gateway/pkg/http"
	"github.com/autovendas/lead-gateway/pkg/logger"
	"github.com/autovendas/lead-gateway/pkg/prom"
	"github.com/autovendas/lead-gateway/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	// transport (tcp for now)
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 5))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

	policy := scoring.DefaultPolicy()
	if path := config.Get().ScoringPath; path != "" {
		policy, err = scoring.LoadPolicy(path)
		if err != nil {
			logger.Error("failed to load scoring policy", "path", path, "error", err)
			return
		}
	}

	leadStore, err := store.New(config.Get().LeadsDir, policy,
		store.WithDefaultRep(config.Get().DefaultAssignedRep))
	if err != nil {
		logger.Error("failed to open lead store", "dir", config.Get().LeadsDir, "error", err)
		return
	}

	var greetings *services.GreetingCache
	if config.Get().RedisAddr != "" {
		redisAdap, err := redis.NewAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
			Addrs:      []string{config.Get().RedisAddr},
			ClientName: "default",
			DB:         config.Get().RedisDatabase,
			Username:   config.Get().RedisUsername,
			Password:   config.Get().RedisPassword,
		})
		if err != nil {
			logger.Error("failed connecting to redis", "error", err)
			return
		}
		greetings = services.NewGreetingCache(redisAdap, config.Get().GreetingTTL)
	} else {
		logger.Warn("redis is not configured, greeting rate limit disabled")
	}

	var dispatcher services.Dispatcher = gateway.Simulator{}
	if config.Get().ProviderUrl != "" {
		client, err := gateway.NewClient(&gateway.Config{
			BaseURL:    config.Get().ProviderUrl,
			From:       config.Get().ProviderFrom,
			Timeout:    config.Get().DispatchTimeout,
			MaxRetries: 2,
		})
		if err != nil {
			logger.Error("failed to create whatsapp client", "error", err)
			return
		}
		dispatcher = client
	} else {
		logger.Warn("provider is not configured, running in simulation mode")
	}

	offers := catalog.New(config.Get().OffersPath, 3)

	// services
	leadService := services.NewLeadService(leadStore, services.StaticResponder{}, offers,
		dispatcher, greetings, config.Get().DispatchTimeout)
	healthService := services.NewHealthService(config.Get().LeadsDir)
	reports := analytics.NewEngine(leadStore)

	var archive *analytics.Archive
	if path := config.Get().ReportArchivePath; path != "" {
		archive, err = analytics.OpenArchive(path)
		if err != nil {
			logger.Error("failed to open report archive", "path", path, "error", err)
			return
		}
	}

	engine, err := automation.NewEngine(leadStore, dispatcher, automation.DefaultRules(), automation.Config{
		Interval:        config.Get().AutomationInterval,
		RetryDelay:      config.Get().AutomationRetryDelay,
		StopTimeout:     config.Get().AutomationStopTimeout,
		DispatchTimeout: config.Get().DispatchTimeout,
	})
	if err != nil {
		logger.Error("failed to create automation engine", "error", err)
		return
	}

	// v1 handlers
	webhookHandler := handlers.NewWebhookHandler(leadService)
	leadHandler := handlers.NewLeadHandler(leadStore, leadService)
	analyticsHandler := handlers.NewAnalyticsHandler(reports, archiveOrNil(archive), engine)
	healthHandler := handlers.NewHealthHandler(healthService)

	wg := s.Router.Group("/webhook")
	handlers.RegisterWebhookRoutes(wg, webhookHandler)

	g := s.Router.Group("/api/v1")
	handlers.RegisterLeadRoutes(g, leadHandler)
	handlers.RegisterAnalyticsRoutes(g, analyticsHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

	var hostname string
	hostname, err = os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	err = prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace)
	if err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}
	if addr := config.Get().AppDebugMetricsAddr; addr != "" {
		go func() {
			prom.ListenAndServe(addr, "/metrics")
		}()
	}

	engine.Start()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		var err = s.ListenAndServe(config.Get().HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	select {
	case <-c:
		engine.Stop()
		s.Shutdown()
	}
}

// archiveOrNil keeps the handler's interface nil when no archive is
// configured; a typed nil *Archive would pass the nil check inside.
func archiveOrNil(a *analytics.Archive) handlers.SnapshotArchive {
	if a == nil {
		return nil
	}
	return a
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
