package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val
}

func getbool(key string, def bool) bool {
	v, err := strconv.ParseBool(getenv(key, strconv.FormatBool(def)))
	if err != nil {
		return def
	}
	return v
}

func mustAtoi64(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// LoadEnvFiles reads .env style files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
		slog.Debug("loaded env file", "path", p)
	}
	return nil
}

func LoadConfig() (*Config, error) {
	dataDir := getenv("DATA_DIR", "./data")
	cacheDir := filepath.Join(dataDir, "cache")

	timeout, err := time.ParseDuration(getenv("DOWNLOAD_TIMEOUT", "5m"))
	if err != nil {
		return nil, ErrConfig("DOWNLOAD_TIMEOUT: " + err.Error())
	}
	rateLimit, err := strconv.ParseFloat(getenv("SUBSONIC_RATE_LIMIT", "0"), 64)
	if err != nil || rateLimit < 0 {
		return nil, ErrConfig("SUBSONIC_RATE_LIMIT must be a non-negative number")
	}
	vol, err := strconv.Atoi(getenv("DEFAULT_VOLUME", "100"))
	if err != nil || vol < 0 {
		return nil, ErrConfig("DEFAULT_VOLUME must be an integer >= 0")
	}

	cfg := &Config{
		DiscordToken:          os.Getenv("DISCORD_TOKEN"),
		SubsonicURL:           strings.TrimRight(os.Getenv("SUBSONIC_URL"), "/"),
		SubsonicUser:          os.Getenv("SUBSONIC_USER"),
		SubsonicPassword:      os.Getenv("SUBSONIC_PASSWORD"),
		SubsonicClient:        getenv("SUBSONIC_CLIENT", "kumasonic"),
		SubsonicRateLimit:     rateLimit,
		SpotifyClientID:       os.Getenv("SPOTIFY_CLIENT_ID"),
		SpotifyClientSecret:   os.Getenv("SPOTIFY_CLIENT_SECRET"),
		EnableYtdlp:           getbool("ENABLE_YTDLP", false),
		YouTubeCookiesPath:    os.Getenv("YOUTUBE_COOKIES"),
		YouTubePOToken:        os.Getenv("YOUTUBE_PO_TOKEN"),
		DataDir:               dataDir,
		CacheDir:              cacheDir,
		CacheLimitBytes:       mustAtoi64(getenv("CACHE_LIMIT", "0")),
		DownloadTimeout:       timeout,
		DefaultVolume:         vol,
		OpusBitrate:           mustAtoi64(getenv("OPUS_BITRATE", "128000")),
		AutoSkipOnFailure:     getbool("AUTO_SKIP_ON_FAILURE", false),
		PrefetchNext:          getbool("PREFETCH_NEXT", true),
		BotStatus:             getenv("BOT_STATUS", "online"),
		BotActivity:           getenv("BOT_ACTIVITY", "music"),
		RegisterCommandsOnBot: getbool("REGISTER_COMMANDS_ON_BOT", false),
		LogLevel:              getenv("LOG_LEVEL", "info"),
		LogFile:               os.Getenv("LOG_FILE"),
		NoColor:               getbool("NO_COLOR", false),
	}

	if cfg.DiscordToken == "" {
		return nil, ErrConfig("DISCORD_TOKEN required")
	}
	if cfg.SubsonicURL == "" || cfg.SubsonicUser == "" {
		return nil, ErrConfig("SUBSONIC_URL and SUBSONIC_USER required")
	}
	if cfg.SubsonicPassword == "" {
		return nil, ErrConfig("SUBSONIC_PASSWORD required")
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// EnsureDirs creates the data, cache and cache scratch directories.
func (c *Config) EnsureDirs() error {
	for _, d := range []string{c.DataDir, c.CacheDir, filepath.Join(c.CacheDir, "tmp")} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}
	return nil
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }
