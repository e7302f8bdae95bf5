package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"imagestudio/internal/http/handlers"
	"imagestudio/internal/http/httpapi"
	"imagestudio/internal/infra"
	"imagestudio/internal/providers/airforce"
	"imagestudio/internal/settings"
	"imagestudio/internal/storage"
	"imagestudio/internal/studio"
)

func main() {
	// .env is optional.
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	store, err := storage.NewArtifactStore(cfg.ArtifactsDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open artifact store")
	}
	gallery := storage.NewGalleryIndex(cfg.ArtifactsDir)
	prefs := settings.NewStore(cfg.SettingsPath)
	cooldown := airforce.NewCooldown()

	svc, err := studio.New(studio.Options{
		Logger:   &logger,
		Store:    store,
		Settings: prefs,
		Cooldown: cooldown,
		NewGenerator: func() (studio.Generator, error) {
			return airforce.NewClient(airforce.Options{
				APIKey:         cfg.AirforceAPIKey,
				BaseURL:        cfg.AirforceBaseURL,
				Logger:         &logger,
				RequestTimeout: cfg.GenerateTimeout,
			})
		},
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build studio service")
	}

	// Drives the informational countdown the UI renders on the Generate
	// button; it never gates a request.
	tickCtx, stopTicker := context.WithCancel(context.Background())
	defer stopTicker()
	go cooldown.Run(tickCtx)

	app := handlers.NewApp(logger, svc, gallery, prefs, cfg.ArtifactsDir)
	router := httpapi.NewRouter(app, logger)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("studio API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("studio stopped")
}
