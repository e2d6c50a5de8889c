package config

import (
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/julianstephens/habitline/internal/auth"
	"github.com/julianstephens/habitline/internal/constants"
	"github.com/julianstephens/habitline/internal/errors"
	"github.com/julianstephens/habitline/internal/jobs"
)

// DefaultFiles are the YAML configuration files consulted, in order
var DefaultFiles = []string{
	"~/.config/" + constants.AppName + "/config.yaml",
	"./" + constants.AppName + ".yaml",
}

// YAML is a kong.ConfigurationLoader for YAML documents. Keys match flag
// names with dashes or underscores; a top-level mapping named after a
// command scopes keys to that command's flags.
func YAML(r io.Reader) (kong.Resolver, error) {
	values := map[string]interface{}{}
	if err := yaml.NewDecoder(r).Decode(&values); err != nil && !stderrors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode YAML configuration: %w", err)
	}

	var f kong.ResolverFunc = func(context *kong.Context, parent *kong.Path, flag *kong.Flag) (interface{}, error) {
		if parent != nil && parent.Command != nil {
			if section, ok := values[parent.Command.Name].(map[string]interface{}); ok {
				if v, ok := lookup(section, flag.Name); ok {
					return v, nil
				}
			}
		}
		if v, ok := lookup(values, flag.Name); ok {
			return v, nil
		}
		return nil, nil
	}
	return f, nil
}

func lookup(values map[string]interface{}, name string) (interface{}, bool) {
	for _, key := range []string{name, strings.ReplaceAll(name, "-", "_")} {
		raw, ok := values[key]
		if !ok {
			continue
		}
		if _, nested := raw.(map[string]interface{}); nested {
			continue
		}
		return scalar(raw), true
	}
	return nil, false
}

// scalar flattens YAML values into the string form kong parses
func scalar(raw interface{}) interface{} {
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		return v
	case []interface{}:
		parts := make([]string, len(v))
		for i, p := range v {
			parts[i] = fmt.Sprint(p)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(v)
	}
}

// LoadDotEnv loads .env files outside production. Missing files are ignored;
// variables already set in the environment win.
func LoadDotEnv(env string, files ...string) error {
	if env == constants.EnvProduction {
		return nil
	}
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if stderrors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Server is the configuration of the HTTP server
type Server struct {
	Addr            string
	Env             string
	CORSOrigins     []string
	RateLimit       float64 // requests per second per client, 0 disables
	RateBurst       int
	SlowDownAfter   int // failed requests per window before delays start, 0 disables
	SlowDownWindow  time.Duration
	SlowDownDelay   time.Duration
	SlowDownMax     time.Duration
	JWTSecret       string
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	SweepSchedule   string // empty disables the sweeper
	ShutdownTimeout time.Duration

	StreakWindow      int
	StreakMaxLookback int
	ToggleRetries     int
}

// DefaultServer returns the settings used when nothing is configured
func DefaultServer() Server {
	return Server{
		Addr:              constants.DefaultAddr,
		CORSOrigins:       []string{"http://localhost:5173"},
		RateLimit:         constants.DefaultRateLimit,
		RateBurst:         constants.DefaultRateBurst,
		SlowDownAfter:     constants.DefaultSlowDownAfter,
		SlowDownWindow:    constants.DefaultSlowDownWindow,
		SlowDownDelay:     constants.DefaultSlowDownDelay,
		SlowDownMax:       constants.DefaultSlowDownMaxDelay,
		AccessTTL:         constants.AccessTokenTTL,
		RefreshTTL:        constants.RefreshTokenTTL,
		SweepSchedule:     constants.DefaultSweepSchedule,
		ShutdownTimeout:   constants.ShutdownTimeout,
		StreakWindow:      constants.DefaultStreakWindow,
		StreakMaxLookback: constants.DefaultStreakMaxLookback,
		ToggleRetries:     constants.DefaultToggleRetries,
	}
}

// IsProduction reports whether error details must be hidden from clients
func (s Server) IsProduction() bool {
	return s.Env == constants.EnvProduction
}

// Validate checks the settings and reports every problem found
func (s Server) Validate() error {
	var problems []string

	if strings.TrimSpace(s.Addr) == "" {
		problems = append(problems, "listen address is required")
	}
	if len(s.JWTSecret) < auth.MinSecretLen {
		problems = append(problems, fmt.Sprintf("JWT secret must be at least %d characters", auth.MinSecretLen))
	}
	if s.RateLimit < 0 {
		problems = append(problems, "rate limit must not be negative")
	}
	if s.RateLimit > 0 && s.RateBurst <= 0 {
		problems = append(problems, "rate burst must be positive when rate limiting is enabled")
	}
	if s.SlowDownAfter < 0 {
		problems = append(problems, "slow-down threshold must not be negative")
	}
	if s.SlowDownAfter > 0 {
		if s.SlowDownWindow <= 0 || s.SlowDownDelay <= 0 {
			problems = append(problems, "slow-down window and delay must be positive when slow-down is enabled")
		}
		if s.SlowDownMax < s.SlowDownDelay {
			problems = append(problems, "slow-down maximum delay must be at least the delay")
		}
	}
	if s.AccessTTL <= 0 || s.RefreshTTL <= 0 {
		problems = append(problems, "token lifetimes must be positive")
	}
	if s.AccessTTL > s.RefreshTTL {
		problems = append(problems, "access token lifetime must not exceed the refresh token lifetime")
	}
	if s.SweepSchedule != "" {
		if err := jobs.ValidateSchedule(s.SweepSchedule); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if s.ShutdownTimeout <= 0 {
		problems = append(problems, "shutdown timeout must be positive")
	}
	if s.StreakWindow <= 0 {
		problems = append(problems, "streak window must be positive")
	}
	if s.StreakMaxLookback < s.StreakWindow {
		problems = append(problems, "streak lookback must be at least the streak window")
	}
	if s.ToggleRetries <= 0 {
		problems = append(problems, "toggle retries must be positive")
	}

	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return errors.Validationf("invalid server configuration: %s", strings.Join(problems, "; "))
}
