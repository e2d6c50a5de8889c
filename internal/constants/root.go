package constants

import "time"

const (
	AppName             = "habitline"
	DefaultKeyringUser  = "database-connection"
	JWTSecretKeyringKey = "jwt-secret"
	DefaultConfigPath   = "~/.config/habitline/habitline.db"
	Version             = "v0.3.0"

	// DateFormat is the standard date format used throughout the application (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// Streak engine defaults
	DefaultStreakWindow      = 60
	DefaultStreakMaxLookback = 3650
	DefaultToggleRetries     = 3

	// Completion history
	DefaultHistoryDays = 30
	MaxHistoryDays     = 366

	// Token lifetimes
	AccessTokenTTL  = time.Hour
	RefreshTokenTTL = 7 * 24 * time.Hour

	// Server defaults
	DefaultAddr      = ":3000"
	DefaultRateLimit = 1000.0 / (15 * 60) // 1000 requests per 15 minutes
	DefaultRateBurst = 100

	// Failed requests a client may make per window before responses slow down
	DefaultSlowDownAfter    = 50
	DefaultSlowDownWindow   = 15 * time.Minute
	DefaultSlowDownDelay    = 500 * time.Millisecond
	DefaultSlowDownMaxDelay = 20 * time.Second

	// Responses smaller than CompressionMinSize bytes are sent as is
	CompressionLevel   = 6
	CompressionMinSize = 1024

	MaxRequestBodyBytes  = 1 << 20
	ShutdownTimeout      = 10 * time.Second
	DefaultSweepSchedule = "0 5 * * * *"

	// Event bus
	EventQueueSize = 256

	EnvProduction = "production"
)

// Frequency is how often a habit is expected to be performed
type Frequency string

const (
	FrequencyDaily Frequency = "daily"
)
