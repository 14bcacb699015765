package config

import "time"

type Config struct {
	DiscordToken string

	SubsonicURL       string
	SubsonicUser      string
	SubsonicPassword  string
	SubsonicClient    string
	SubsonicRateLimit float64 // requests per second, 0 = unlimited

	SpotifyClientID     string
	SpotifyClientSecret string
	EnableYtdlp         bool
	YouTubeCookiesPath  string
	YouTubePOToken      string

	DataDir         string
	CacheDir        string
	CacheLimitBytes int64 // 0 = never evict
	DownloadTimeout time.Duration

	DefaultVolume     int
	OpusBitrate       int64
	AutoSkipOnFailure bool
	PrefetchNext      bool

	BotStatus             string // online/dnd/idle
	BotActivity           string
	RegisterCommandsOnBot bool

	LogLevel string
	LogFile  string
	NoColor  bool
}
