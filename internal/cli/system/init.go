package system

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/julianstephens/habitline/internal/cli"
	"github.com/julianstephens/habitline/internal/storage"
	"github.com/julianstephens/habitline/internal/storage/sqlite"
)

const (
	firstDay = "0001-01-01"
	lastDay  = "9999-12-31"
)

type InitCmd struct {
	Force  bool   `help:"Force reset by deleting an existing SQLite database before initialization."`
	Source string `help:"Source database path or connection string to copy data from."`
}

func (c *InitCmd) Run(ctx *cli.Context) error {
	if c.Force {
		if err := c.reset(ctx); err != nil {
			return err
		}
	}

	if err := ctx.Store.Init(ctx.Ctx); err != nil {
		return err
	}
	fmt.Printf("Initialized habitline storage at: %s\n", ctx.Store.GetConfigPath())

	if c.Source != "" {
		fmt.Printf("Copying data from: %s\n", c.Source)
		source, err := cli.OpenStore(c.Source)
		if err != nil {
			return err
		}
		if err := source.Load(ctx.Ctx); err != nil {
			return fmt.Errorf("failed to load source database: %w", err)
		}
		defer source.Close()

		if err := CopyData(ctx, source, ctx.Store); err != nil {
			return fmt.Errorf("copy failed: %w", err)
		}
		fmt.Println(cli.SuccessStyle.Render("Copy completed successfully!"))
	}
	return nil
}

// reset deletes the SQLite database file. Other backends are left alone.
func (c *InitCmd) reset(ctx *cli.Context) error {
	if _, ok := ctx.Store.(*sqlite.Store); !ok {
		return fmt.Errorf("--force is only supported for SQLite storage")
	}

	dbPath := ctx.Store.GetConfigPath()
	if abs, err := filepath.Abs(dbPath); err == nil {
		dbPath = abs
	}
	if c.Source != "" {
		if absSource, err := filepath.Abs(c.Source); err == nil && absSource == dbPath {
			return fmt.Errorf("cannot use --force when source and destination are the same: %s", dbPath)
		}
	}

	if _, err := os.Stat(dbPath); err == nil {
		if err := ctx.Store.Close(); err != nil {
			return fmt.Errorf("failed to close existing database: %w", err)
		}
		for _, suffix := range []string{"", "-wal", "-shm"} {
			if err := os.Remove(dbPath + suffix); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to delete existing database: %w", err)
			}
		}
		fmt.Printf("Deleted existing database at: %s\n", dbPath)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to access existing database: %w", err)
	}
	return nil
}

// CopyData copies every user with their habits and completions from src
// into dst inside one destination transaction.
func CopyData(ctx *cli.Context, src storage.Repository, dst storage.Repository) error {
	users, err := src.GetAllUsers(ctx.Ctx)
	if err != nil {
		return fmt.Errorf("failed to get users from source: %w", err)
	}

	var habitCount, completionCount int
	err = dst.WithTx(ctx.Ctx, func(tx storage.Repository) error {
		for _, u := range users {
			if err := tx.AddUser(ctx.Ctx, u); err != nil {
				return fmt.Errorf("failed to add user %s: %w", u.ID, err)
			}

			habits, err := src.GetAllHabits(ctx.Ctx, u.ID, true)
			if err != nil {
				return fmt.Errorf("failed to get habits of user %s: %w", u.ID, err)
			}
			for _, h := range habits {
				if err := tx.AddHabit(ctx.Ctx, h); err != nil {
					return fmt.Errorf("failed to add habit %s: %w", h.ID, err)
				}

				completions, err := src.GetCompletionsInRange(ctx.Ctx, u.ID, h.ID, firstDay, lastDay)
				if err != nil {
					return fmt.Errorf("failed to get completions of habit %s: %w", h.ID, err)
				}
				for _, comp := range completions {
					if err := tx.UpsertCompletion(ctx.Ctx, comp); err != nil {
						return fmt.Errorf("failed to add completion %s: %w", comp.ID, err)
					}
				}
				completionCount += len(completions)
			}
			habitCount += len(habits)
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Printf("    Copied %d users, %d habits, %d completions\n", len(users), habitCount, completionCount)
	return nil
}

type MigrateCmd struct{}

func (c *MigrateCmd) Run(ctx *cli.Context) error {
	count, err := ctx.Store.Migrate(ctx.Ctx, func(msg string) {
		fmt.Println(msg)
	})
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	if count == 0 {
		fmt.Println("No migrations to apply. Database is up to date.")
	} else {
		fmt.Printf("\nSuccessfully applied %d migration(s).\n", count)
	}
	return nil
}
