package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/habitline/internal/cli"
	"github.com/julianstephens/habitline/internal/cli/habits"
	"github.com/julianstephens/habitline/internal/cli/system"
	"github.com/julianstephens/habitline/internal/cli/users"
	"github.com/julianstephens/habitline/internal/config"
	"github.com/julianstephens/habitline/internal/constants"
	"github.com/julianstephens/habitline/internal/errors"
	"github.com/julianstephens/habitline/internal/events"
	"github.com/julianstephens/habitline/internal/logger"
	"github.com/julianstephens/habitline/internal/streak"
	"github.com/julianstephens/habitline/internal/utils"
)

var CLI struct {
	Version    kong.VersionFlag
	ConfigFile kong.ConfigFlag `name:"config-file" help:"YAML configuration file."`
	DB         string          `name:"db" help:"SQLite database path or PostgreSQL connection string. PostgreSQL credentials must NOT be embedded; use HABITLINE_DB_CONNECTION, .pgpass, or the OS keyring instead. Defaults to ~/.config/habitline/habitline.db." env:"HABITLINE_DB"`
	Debug      bool            `help:"Enable debug logging." env:"HABITLINE_DEBUG"`
	LogFormat  string          `help:"Log format." enum:"text,json" default:"text" env:"HABITLINE_LOG_FORMAT"`
	LogDir     string          `help:"Directory for log files." default:"~/.config/habitline/logs" env:"HABITLINE_LOG_DIR"`

	Init    system.InitCmd    `cmd:"" help:"Initialize habitline storage."`
	Migrate system.MigrateCmd `cmd:"" help:"Run database migrations."`
	Doctor  system.DoctorCmd  `cmd:"" help:"Run health checks and diagnostics."`
	Serve   system.ServeCmd   `cmd:"" help:"Run the REST API server."`
	Sweep   system.SweepCmd   `cmd:"" help:"Reset lapsed streaks once."`
	Keyring system.KeyringCmd `cmd:"" help:"Manage secrets in the OS keyring."`
	User    users.UserCmd     `cmd:"" help:"Manage user accounts."`
	Habit   habits.HabitCmd   `cmd:"" help:"Manage habits and track completions."`
}

// commands that manage storage themselves instead of expecting it loaded
var selfLoading = map[string]bool{
	"init":    true,
	"migrate": true,
	"doctor":  true,
	"keyring": true,
}

func main() {
	if err := config.LoadDotEnv(os.Getenv("HABITLINE_ENV")); err != nil {
		errors.Fatal(err)
	}

	kctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Habit tracking with daily streaks"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Configuration(config.YAML, config.DefaultFiles...),
		kong.Vars{"version": constants.Version},
	)

	logDir, err := utils.ExpandPath(CLI.LogDir)
	if err != nil {
		errors.Fatal(err)
	}
	if err := logger.Init(logger.Config{
		Debug:  CLI.Debug,
		LogDir: logDir,
		Stderr: kctx.Command() == "serve",
		JSON:   CLI.LogFormat == "json",
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}

	store, err := cli.OpenStore(CLI.DB)
	if err != nil {
		errors.Fatal(err)
	}

	ctx := context.Background()
	bus := events.NewBus(constants.EventQueueSize)
	bus.Subscribe(events.LogHandler)

	appCtx := &cli.Context{
		Ctx:    ctx,
		Store:  store,
		Bus:    bus,
		Engine: streak.New(store, bus, streak.DefaultOptions()),
	}

	if selected := kctx.Selected(); selected != nil && !selfLoading[rootCommand(selected)] {
		if err := store.Load(ctx); err != nil {
			errors.Fatal(err)
		}
	}

	err = kctx.Run(appCtx)
	bus.Close()
	_ = store.Close()
	if err != nil {
		errors.Fatal(err)
	}
}

func rootCommand(node *kong.Node) string {
	for node.Parent != nil && node.Parent.Type != kong.ApplicationNode {
		node = node.Parent
	}
	return node.Name
}
