package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FREEWORLD-HUB/group1-advertisement/config"
	"github.com/FREEWORLD-HUB/group1-advertisement/feed"
	advertsapi "github.com/FREEWORLD-HUB/group1-advertisement/handlers/api/adverts"
	"github.com/FREEWORLD-HUB/group1-advertisement/handlers/api/genai"
	"github.com/FREEWORLD-HUB/group1-advertisement/handlers/api/users"
	"github.com/FREEWORLD-HUB/group1-advertisement/handlers/auth"
	"github.com/FREEWORLD-HUB/group1-advertisement/imagegen"
	"github.com/FREEWORLD-HUB/group1-advertisement/locks"
	"github.com/FREEWORLD-HUB/group1-advertisement/metrics"
	authMiddleware "github.com/FREEWORLD-HUB/group1-advertisement/middleware"
	"github.com/FREEWORLD-HUB/group1-advertisement/services/adverts"
	"github.com/FREEWORLD-HUB/group1-advertisement/stores"
	"github.com/FREEWORLD-HUB/group1-advertisement/stores/filesystem"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type app struct {
	cfg     *config.Config
	store   stores.Store
	service *adverts.Service
	issuer  *auth.Issuer
	oauth   *auth.OAuth
	metrics *metrics.Metrics
	hub     *feed.Hub
}

func setupRouter(a *app) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(a.metrics.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "X-CSRF-Token", "Origin", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	creator := []func(http.Handler) http.Handler{
		authMiddleware.AuthJWT(a.issuer),
		authMiddleware.RequireRoles(a.cfg.Auth.CreatorRoles...),
	}
	maxUpload := a.cfg.Server.MaxUploadBytes

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"message": "Welcome to the Advertisement API"})
	})

	r.Route("/adverts", func(r chi.Router) {
		r.Get("/", advertsapi.HandleSearch(a.service))
		r.With(creator...).Post("/", advertsapi.HandleCreate(a.service, maxUpload))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", advertsapi.HandleGet(a.service))
			r.Get("/similar", advertsapi.HandleSimilar(a.service))
			r.Group(func(r chi.Router) {
				r.Use(authMiddleware.AuthJWT(a.issuer))
				r.Put("/", advertsapi.HandleReplace(a.service, maxUpload))
				r.Delete("/", advertsapi.HandleDelete(a.service))
			})
		})
	})

	r.Route("/users", func(r chi.Router) {
		r.Post("/register", users.HandleRegister(a.store, a.cfg.Auth.RegisterRoles))
		r.Post("/login", users.HandleLogin(a.store, a.issuer))
		r.With(authMiddleware.AuthJWT(a.issuer)).Get("/me", users.HandleMe(a.store))
	})

	r.With(creator...).Post("/genai/generate-image", genai.HandleGenerateImage(a.service))

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", a.oauth.HandleLogin)
		r.Get("/callback", a.oauth.HandleCallback)
	})

	if a.cfg.Images.Type == "filesystem" {
		r.Handle(filesystem.URLPrefix+"*", http.StripPrefix(filesystem.URLPrefix, http.FileServer(http.Dir(a.cfg.Images.LocalPath))))
	}
	r.Handle("/metrics", a.metrics.Handler())
	r.Mount("/socket.io/", a.hub.Handler())

	return r
}

func newLocker(cfg config.RedisConfig) locks.Locker {
	if cfg.Addr == "" {
		return locks.NewLocal()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	logrus.WithField("addr", cfg.Addr).Info("Use redis create lock")
	return locks.NewRedis(client, cfg.LockTTL)
}

func setupLogging(cfg config.LogConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	if cfg.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

func waitForShutdown(srv *http.Server, a *app) {
	signalC := make(chan os.Signal, 1)
	signal.Notify(signalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	s := <-signalC
	logrus.WithField("signal", s.String()).Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Server shutdown failed")
	}
	a.hub.Close()
	if err := a.store.Close(); err != nil {
		logrus.WithError(err).Error("Failed to close store")
	}
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	listenAddress := flag.String("listen", "", "The address to listen on. Overrides server.listen.")
	logLevel := flag.String("loglevel", "", "The log level (debug, info, warn, error). Overrides log.level.")
	configPath := flag.String("config", "", "Path to an optional config file.")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}
	if *listenAddress != "" {
		cfg.Server.Listen = *listenAddress
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	setupLogging(cfg.Log)

	ctx := context.Background()
	store, err := stores.OpenStore(ctx, cfg.Storage)
	if err != nil {
		logrus.WithField("event", "open store").Fatal(err)
	}
	images, err := stores.OpenImageStore(ctx, cfg.Images, cfg.Server.PublicURL)
	if err != nil {
		logrus.WithField("event", "open image store").Fatal(err)
	}
	generator := imagegen.NewOpenAI(imagegen.Config{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.Model,
		Size:    cfg.OpenAI.Size,
		Timeout: cfg.OpenAI.Timeout,
	})

	m := metrics.NewMetrics()
	hub := feed.NewHub()
	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	a := &app{
		cfg:   cfg,
		store: store,
		service: adverts.New(store, images, generator,
			adverts.WithLocker(newLocker(cfg.Redis)),
			adverts.WithPublisher(hub),
			adverts.WithMetrics(m),
			adverts.WithLimits(cfg.Search.DefaultLimit, cfg.Search.MaxLimit),
		),
		issuer:  issuer,
		oauth:   auth.NewOAuth(ctx, cfg.Auth, store, issuer),
		metrics: m,
		hub:     hub,
	}

	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           setupRouter(a),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logrus.WithField("addr", cfg.Server.Listen).Info("starting server")
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	logrus.Debug("Server is running in the background")
	waitForShutdown(srv, a)
}
