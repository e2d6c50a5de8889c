package system

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/julianstephens/habitline/internal/api"
	"github.com/julianstephens/habitline/internal/cli"
	"github.com/julianstephens/habitline/internal/config"
	"github.com/julianstephens/habitline/internal/jobs"
	"github.com/julianstephens/habitline/internal/keyring"
	"github.com/julianstephens/habitline/internal/logger"
)

type ServeCmd struct {
	Addr            string        `help:"Listen address." default:":3000" env:"HABITLINE_ADDR"`
	Env             string        `help:"Runtime environment; production hides internal error details." default:"development" env:"HABITLINE_ENV"`
	CORSOrigins     []string      `name:"cors-origins" help:"Allowed CORS origins." default:"http://localhost:5173" env:"HABITLINE_CORS_ORIGINS"`
	RateLimit       int           `help:"Requests allowed per client per rate window (0 disables)." default:"1000" env:"HABITLINE_RATE_LIMIT"`
	RateWindow      time.Duration `help:"Window the rate limit is measured over." default:"15m" env:"HABITLINE_RATE_WINDOW"`
	RateBurst       int           `help:"Burst size of the per-client rate limiter." default:"100" env:"HABITLINE_RATE_BURST"`
	SlowDownAfter   int           `help:"Failed requests allowed per client per slow-down window before responses are delayed (0 disables)." default:"50" env:"HABITLINE_SLOW_DOWN_AFTER"`
	SlowDownWindow  time.Duration `help:"Window failed requests are counted over." default:"15m" env:"HABITLINE_SLOW_DOWN_WINDOW"`
	SlowDownDelay   time.Duration `help:"Delay added per failed request over the allowance." default:"500ms" env:"HABITLINE_SLOW_DOWN_DELAY"`
	SlowDownMax     time.Duration `help:"Upper bound on the added delay." default:"20s" env:"HABITLINE_SLOW_DOWN_MAX"`
	JWTSecret       string        `name:"jwt-secret" help:"Token signing secret (falls back to the OS keyring)." env:"HABITLINE_JWT_SECRET"`
	AccessTTL       time.Duration `name:"access-ttl" help:"Access token lifetime." default:"1h" env:"HABITLINE_ACCESS_TTL"`
	RefreshTTL      time.Duration `name:"refresh-ttl" help:"Refresh token lifetime." default:"168h" env:"HABITLINE_REFRESH_TTL"`
	SweepSchedule   string        `help:"Cron schedule of the streak sweeper (empty disables)." default:"0 5 * * * *" env:"HABITLINE_SWEEP_SCHEDULE"`
	SweepTimeout    time.Duration `help:"Upper bound on a single sweep." default:"5m" env:"HABITLINE_SWEEP_TIMEOUT"`
	ShutdownTimeout time.Duration `help:"Grace period for in-flight requests on shutdown." default:"10s" env:"HABITLINE_SHUTDOWN_TIMEOUT"`

	StreakWindow      int `help:"Completions read per streak lookback batch." default:"60" env:"HABITLINE_STREAK_WINDOW"`
	StreakMaxLookback int `help:"Maximum days scanned when recomputing a streak." default:"3650" env:"HABITLINE_STREAK_MAX_LOOKBACK"`
	ToggleRetries     int `help:"Attempts at a toggle that races a concurrent update." default:"3" env:"HABITLINE_TOGGLE_RETRIES"`
}

// Config converts the flags into server settings, resolving the JWT secret
// from the keyring when no flag or environment value is set.
func (c *ServeCmd) Config() (config.Server, error) {
	secret := c.JWTSecret
	if secret == "" {
		s, err := keyring.GetJWTSecret()
		if err != nil && !errors.Is(err, keyring.ErrNotFound) {
			logger.Warn("Could not read JWT secret from keyring", "error", err)
		}
		secret = s
	}
	if secret == "" {
		return config.Server{}, fmt.Errorf("no JWT secret configured: set --jwt-secret, HABITLINE_JWT_SECRET, or run 'habitline keyring set-jwt-secret'")
	}

	cfg := config.DefaultServer()
	cfg.Addr = c.Addr
	cfg.Env = c.Env
	cfg.CORSOrigins = c.CORSOrigins
	cfg.RateLimit = 0
	if c.RateLimit > 0 && c.RateWindow > 0 {
		cfg.RateLimit = float64(c.RateLimit) / c.RateWindow.Seconds()
	}
	cfg.RateBurst = c.RateBurst
	cfg.SlowDownAfter = c.SlowDownAfter
	cfg.SlowDownWindow = c.SlowDownWindow
	cfg.SlowDownDelay = c.SlowDownDelay
	cfg.SlowDownMax = c.SlowDownMax
	cfg.JWTSecret = secret
	cfg.AccessTTL = c.AccessTTL
	cfg.RefreshTTL = c.RefreshTTL
	cfg.SweepSchedule = c.SweepSchedule
	cfg.ShutdownTimeout = c.ShutdownTimeout
	cfg.StreakWindow = c.StreakWindow
	cfg.StreakMaxLookback = c.StreakMaxLookback
	cfg.ToggleRetries = c.ToggleRetries
	return cfg, cfg.Validate()
}

func (c *ServeCmd) Run(ctx *cli.Context) error {
	cfg, err := c.Config()
	if err != nil {
		return err
	}

	srv, err := api.New(cfg, ctx.Store, ctx.Bus)
	if err != nil {
		return err
	}

	if cfg.SweepSchedule != "" {
		sweeper := jobs.NewSweeper(ctx.Store, ctx.Bus)
		if err := sweeper.Start(cfg.SweepSchedule, c.SweepTimeout); err != nil {
			return err
		}
		defer sweeper.Stop()
	}

	runCtx, stop := signal.NotifyContext(ctx.Ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("habitline listening on %s (%s)\n", cfg.Addr, cfg.Env)
	return srv.ListenAndServe(runCtx)
}

type SweepCmd struct {
	Timeout time.Duration `help:"Upper bound on the sweep." default:"5m"`
}

func (c *SweepCmd) Run(ctx *cli.Context) error {
	runCtx, cancel := context.WithTimeout(ctx.Ctx, c.Timeout)
	defer cancel()

	report, err := jobs.NewSweeper(ctx.Store, ctx.Bus).RunOnce(runCtx)
	if err != nil {
		return err
	}

	fmt.Printf("Checked %d streaking habit(s): %s reset, %d skipped\n",
		report.Checked, cli.StreakStyle.Render(fmt.Sprint(report.Reset)), report.Skipped)
	return nil
}
