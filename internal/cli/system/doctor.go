package system

import (
	"fmt"
	"time"

	"github.com/julianstephens/habitline/internal/cli"
	"github.com/julianstephens/habitline/internal/keyring"
	"github.com/julianstephens/habitline/internal/validation"
)

type DoctorCmd struct{}

type check struct {
	name     string
	run      func(*cli.Context) error
	needsDB  bool
	advisory bool
}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	fmt.Println(cli.TitleStyle.Render("Running diagnostics..."))
	fmt.Println()

	dbReachable := true
	if err := checkDBReachable(ctx); err != nil {
		report("Database reachable", err, false)
		dbReachable = false
	} else {
		report("Database reachable", nil, false)
	}

	checks := []check{
		{name: "Schema version", run: checkSchemaVersion, needsDB: true},
		{name: "Habit integrity", run: checkHabitIntegrity, needsDB: true},
		{name: "Clock/timezone", run: func(*cli.Context) error { return checkClock(time.Now()) }},
		{name: "OS keyring", run: func(*cli.Context) error { return checkKeyring() }, advisory: true},
	}

	hasError := !dbReachable
	for _, c := range checks {
		if c.needsDB && !dbReachable {
			fmt.Println(cli.MutedStyle.Render(fmt.Sprintf("⊘ %s: SKIPPED (database not reachable)", c.name)))
			continue
		}
		err := c.run(ctx)
		report(c.name, err, c.advisory)
		if err != nil && !c.advisory {
			hasError = true
		}
	}

	fmt.Println()
	if hasError {
		fmt.Println(cli.DangerStyle.Render("Diagnostics completed with errors."))
		return fmt.Errorf("one or more health checks failed")
	}
	fmt.Println(cli.SuccessStyle.Render("All diagnostics passed!"))
	return nil
}

func report(name string, err error, advisory bool) {
	switch {
	case err == nil:
		fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("✓ %s: OK", name)))
	case advisory:
		fmt.Println(cli.WarningStyle.Render(fmt.Sprintf("⚠ %s: WARNING", name)))
		fmt.Printf("   %v\n", err)
	default:
		fmt.Println(cli.DangerStyle.Render(fmt.Sprintf("❌ %s: FAIL", name)))
		fmt.Printf("   Error: %v\n", err)
	}
}

// checkDBReachable loads the store. A database whose schema is behind still
// counts as reachable so the schema check can report it.
func checkDBReachable(ctx *cli.Context) error {
	loadErr := ctx.Store.Load(ctx.Ctx)
	if loadErr == nil {
		return ctx.Store.Ping(ctx.Ctx)
	}
	if err := ctx.Store.Ping(ctx.Ctx); err != nil {
		return fmt.Errorf("failed to load database: %w", loadErr)
	}
	return nil
}

func checkSchemaVersion(ctx *cli.Context) error {
	current, latest, err := ctx.Store.SchemaVersion(ctx.Ctx)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if current > latest {
		return fmt.Errorf("database schema version (%d) is newer than supported version (%d)", current, latest)
	}
	if current < latest {
		return fmt.Errorf("migrations incomplete: current version %d, latest version %d (run 'habitline migrate')", current, latest)
	}
	return nil
}

// checkHabitIntegrity audits every user's habits against the streak and
// naming invariants, judging dates by each owner's own calendar.
func checkHabitIntegrity(ctx *cli.Context) error {
	users, err := ctx.Store.GetAllUsers(ctx.Ctx)
	if err != nil {
		return fmt.Errorf("failed to get users: %w", err)
	}

	v := validation.New()
	var conflicts []validation.Conflict
	for _, u := range users {
		habits, err := ctx.Store.GetAllHabits(ctx.Ctx, u.ID, true)
		if err != nil {
			return fmt.Errorf("failed to get habits of %s: %w", u.Email, err)
		}
		result := v.CheckHabits(habits, cli.Today(u))
		conflicts = append(conflicts, result.Conflicts...)
	}

	result := validation.ValidationResult{Conflicts: conflicts}
	if result.HasConflicts() {
		return fmt.Errorf("%d problem(s) found\n%s", len(conflicts), result.FormatReport())
	}
	return nil
}

func checkClock(now time.Time) error {
	if now.Year() < 2020 || now.Year() > 2100 {
		return fmt.Errorf("system time appears incorrect: %s", now.Format(time.RFC3339))
	}
	return nil
}

func checkKeyring() error {
	if !keyring.IsAvailable() {
		return fmt.Errorf("OS keyring is not available; use environment variables for secrets")
	}
	return nil
}
