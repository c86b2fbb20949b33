package constants

import "time"

// Default relay configuration values
const (
	DefaultRetentionHours       = 24
	DefaultSweepSpec            = "@hourly"
	DefaultNSFWThreshold        = 0.90
	DefaultServerPort           = 8082
	DefaultRedisAddr            = "localhost:6379"
	DefaultClassifierTimeoutSec = 10
)

// Cache TTLs
const (
	ConnectionCacheTTL = 60 * time.Second
	HubCacheTTL        = 60 * time.Second
	MessageCacheTTL    = DefaultRetentionHours * time.Hour
	DeleteLockTTL      = 15 * time.Minute
)

// Default timeout values
const (
	DefaultHTTPTimeoutSec          = 30
	DefaultDatabaseRetryAttempts   = 3
	DefaultRetryBackoffMs          = 1000
	DefaultMaxBackoffMs            = 60000
	DefaultClassifierRetryAttempts = 2
	DefaultClassifierBackoffMs     = 250
	DefaultGracefulShutdownSec     = 30
	DefaultServerReadTimeoutSec    = 15
	DefaultServerWriteTimeoutSec   = 15
	DefaultServerIdleTimeoutSec    = 60
)

// Formatting defaults
const (
	CensorSymbol     = '*'
	DefaultAvatarURL = "https://cdn.discordapp.com/embed/avatars/0.png"
	MaxExcerptLength = 80
	EmbedColorRelay  = 0x5865F2
	EmbedColorAlert  = 0xFF0000
)
