package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sonroyaalmerol/kumasonic/internal/cache"
	"github.com/sonroyaalmerol/kumasonic/internal/catalog"
	"github.com/sonroyaalmerol/kumasonic/internal/config"
	"github.com/sonroyaalmerol/kumasonic/internal/handlers"
	"github.com/sonroyaalmerol/kumasonic/internal/logging"
	"github.com/sonroyaalmerol/kumasonic/internal/repository"
	"github.com/sonroyaalmerol/kumasonic/internal/spotify"
	"github.com/sonroyaalmerol/kumasonic/internal/subsonic"
	"github.com/sonroyaalmerol/kumasonic/internal/youtube"
)

type flags struct {
	envFiles []string
	dataDir  string
	logFile  string
	debug    bool
	noColor  bool
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:          "kumasonic",
		Short:        "Discord music bot for OpenSubsonic libraries",
		Version:      appVersion(),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), f)
		},
	}
	cmd.Flags().StringSliceVar(&f.envFiles, "env-file", nil, "env files to load (default .env)")
	cmd.Flags().StringVar(&f.dataDir, "data-dir", "", "overrides DATA_DIR")
	cmd.Flags().StringVar(&f.logFile, "log-file", "", "overrides LOG_FILE")
	cmd.Flags().BoolVar(&f.debug, "debug", false, "log at debug level")
	cmd.Flags().BoolVar(&f.noColor, "no-color", false, "disable colored log output")
	return cmd
}

func run(parent context.Context, f flags) error {
	if err := config.LoadEnvFiles(f.envFiles...); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	if f.dataDir != "" {
		os.Setenv("DATA_DIR", f.dataDir)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if f.debug {
		cfg.LogLevel = "debug"
	}
	if f.logFile != "" {
		cfg.LogFile = f.logFile
	}
	cfg.NoColor = cfg.NoColor || f.noColor

	_, logCloser, err := logging.Setup(logging.Options{
		Level:   cfg.LogLevel,
		NoColor: cfg.NoColor,
		File:    cfg.LogFile,
	})
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := repository.OpenDB(cfg)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()
	repo := repository.NewRepo(db)

	library := subsonic.NewFromConfig(cfg)
	pingCtx, pingCancel := context.WithTimeout(ctx, 15*time.Second)
	err = library.Ping(pingCtx)
	pingCancel()
	if err != nil {
		return fmt.Errorf("subsonic ping %s: %w", cfg.SubsonicURL, err)
	}
	slog.Info("connected to subsonic server", "url", cfg.SubsonicURL, "user", cfg.SubsonicUser)

	var routerOpts []catalog.RouterOption
	if cfg.EnableYtdlp {
		youtube.Install(ctx)
		routerOpts = append(routerOpts, catalog.WithYouTube(youtube.New(cfg)))
		slog.Info("yt-dlp backend enabled")
	}
	if cfg.SpotifyClientID != "" && cfg.SpotifyClientSecret != "" {
		sp, err := spotify.NewClientCredentials(cfg.SpotifyClientID, cfg.SpotifyClientSecret)
		if err != nil {
			return fmt.Errorf("spotify: %w", err)
		}
		routerOpts = append(routerOpts, catalog.WithLinkExpander(sp))
		slog.Info("spotify link expansion enabled")
	}
	router := catalog.NewRouter(library, routerOpts...)

	files := cache.NewFileCache(cfg, router, repo)
	if err := files.Sweep(); err != nil {
		slog.Warn("cache sweep failed", "err", err)
	}

	bot := handlers.NewBot(cfg, repo, router, files, library)
	if err := bot.Run(ctx); err != nil {
		slog.Error("bot stopped", "err", err)
		return err
	}
	slog.Info("shutdown complete")
	return nil
}

func appVersion() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok || bi.Main.Version == "" {
		return "dev"
	}
	return bi.Main.Version
}
