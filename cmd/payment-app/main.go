package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/saleorbridge/payment-bridge/internal/appconfig"
	"github.com/saleorbridge/payment-bridge/internal/cache"
	"github.com/saleorbridge/payment-bridge/internal/config"
	"github.com/saleorbridge/payment-bridge/internal/tenant"
	ws "github.com/saleorbridge/payment-bridge/internal/websocket"
)

// PaymentApp wires the tenant registry, config store and webhook pipeline
// behind one HTTP surface.
type PaymentApp struct {
	cfg       *config.Config
	tenants   *tenant.Store
	cache     *cache.Client
	lease     appconfig.Lease
	providers []ProviderEnvironment
	wsHub     *ws.Hub
	events    *EventEmitter
}

func main() {
	migrate := flag.Bool("migrate", false, "run pending configuration migrations for all tenants and exit")
	flag.Parse()

	// Local development convenience; in deployed environments the variables
	// come from the runtime.
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Environment,
		}); err != nil {
			log.Fatal("Failed to initialize Sentry:", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	log.Printf("🚀 Payment Bridge starting on port %s", cfg.Port)

	// Connect to the tenant registry
	tenants, err := tenant.NewStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer tenants.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := tenants.EnsureSchema(ctx); err != nil {
		cancel()
		log.Fatal("Failed to ensure tenant schema:", err)
	}
	cancel()

	// Redis is optional; without it config writes fall back to a
	// process-local lease, which is only safe for single-instance deploys.
	var redisClient *cache.Client
	var lease appconfig.Lease
	if cfg.RedisURL != "" {
		redisClient, err = cache.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Fatal("Failed to connect to Redis:", err)
		}
		defer redisClient.Close()
		lease = cache.NewRedisLease(redisClient, 10*time.Second)
		log.Println("Using Redis write lease")
	} else {
		lease = cache.NewLocalLease()
		log.Println("REDIS_URL not set, using process-local write lease")
	}

	providers, err := LoadProviderEnvironments(cfg.ProvidersPath)
	if err != nil {
		log.Printf("Warning: could not load provider environments from %s: %v", cfg.ProvidersPath, err)
	} else {
		log.Printf("Loaded %d provider environments", len(providers))
	}

	app := &PaymentApp{
		cfg:       cfg,
		tenants:   tenants,
		cache:     redisClient,
		lease:     lease,
		providers: providers,
	}

	if *migrate {
		if err := app.runMigrations(context.Background()); err != nil {
			log.Fatal("Migration run failed:", err)
		}
		return
	}

	// Initialize WebSocket hub
	hubLogger := log.New(os.Stdout, "[WS-HUB] ", log.LstdFlags)
	app.wsHub = ws.NewHub(hubLogger)
	go app.wsHub.Run()
	log.Println("WebSocket hub started")

	app.events = NewEventEmitter(app.wsHub)

	// Setup routes
	r := mux.NewRouter()
	r.HandleFunc("/health", app.healthCheck).Methods("GET")
	r.HandleFunc("/ws", app.wsHub.ServeWs).Methods("GET")
	r.HandleFunc("/ws/stats", app.wsStats).Methods("GET")
	r.HandleFunc("/api/register", app.handleRegister).Methods("POST")
	r.HandleFunc("/api/webhooks/{event}", app.handleWebhook).Methods("POST")
	r.HandleFunc("/api/configuration", app.getConfiguration).Methods("GET")
	r.HandleFunc("/api/configuration", app.patchConfiguration).Methods("POST")
	r.HandleFunc("/api/configuration/entries", app.addEntry).Methods("POST")
	r.HandleFunc("/api/configuration/entries/{id}", app.updateEntry).Methods("PUT")
	r.HandleFunc("/api/configuration/entries/{id}", app.deleteEntry).Methods("DELETE")
	r.HandleFunc("/api/configuration/channels/{channelID}", app.setMapping).Methods("PUT")
	r.HandleFunc("/api/configuration/channels/{channelID}", app.deleteMapping).Methods("DELETE")
	r.HandleFunc("/api/providers", app.listProviders).Methods("GET")
	r.HandleFunc("/internal/events", app.handleInternalEvent).Methods("POST")

	// Start server with graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("Payment Bridge listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server:", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}

// runMigrations walks every registered tenant and persists any pending
// configuration schema migrations.
func (app *PaymentApp) runMigrations(ctx context.Context) error {
	auths, err := app.tenants.List(ctx)
	if err != nil {
		return err
	}

	log.Printf("Running configuration migrations for %d tenants", len(auths))
	for i := range auths {
		auth := &auths[i]
		configurator := app.configuratorFor(auth)
		changed, err := configurator.Migrate(ctx)
		if err != nil {
			log.Printf("Migration failed for %s: %v", auth.Domain, err)
			continue
		}
		if changed {
			log.Printf("Migrated configuration for %s", auth.Domain)
		}
	}
	return nil
}
