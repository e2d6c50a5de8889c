package habits

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/habitline/internal/cli"
	"github.com/julianstephens/habitline/internal/constants"
	"github.com/julianstephens/habitline/internal/events"
	"github.com/julianstephens/habitline/internal/models"
	"github.com/julianstephens/habitline/internal/streak"
	"github.com/julianstephens/habitline/internal/utils"
	"github.com/julianstephens/habitline/internal/validation"
)

const maxNameLen = 20

type HabitCmd struct {
	User string `help:"Email or id of the habit owner." env:"HABITLINE_USER" required:""`

	Add      HabitAddCmd      `cmd:"" help:"Add a new habit."`
	List     HabitListCmd     `cmd:"" help:"List habits with their streaks."`
	Complete HabitCompleteCmd `cmd:"" help:"Mark a habit as done today."`
	Undo     HabitUndoCmd     `cmd:"" help:"Clear today's completion of a habit."`
	Streak   HabitStreakCmd   `cmd:"" help:"Show streaks."`
	Log      HabitLogCmd      `cmd:"" help:"Show habit log (ASCII history)."`
	Archive  HabitArchiveCmd  `cmd:"" help:"Archive or unarchive a habit."`
}

type HabitAddCmd struct {
	Name        string `arg:"" help:"Habit name."`
	Description string `help:"Optional description."`
	Color       string `help:"Display color in #RRGGBB format."`
}

func (c *HabitAddCmd) Run(ctx *cli.Context, parent *HabitCmd) error {
	user, err := ctx.FindUser(parent.User)
	if err != nil {
		return err
	}

	name := strings.TrimSpace(c.Name)
	if err := validation.First(
		validation.ValidateHabitName(name),
		validation.ValidateDescription(c.Description),
		validation.ValidateColor(c.Color),
	); err != nil {
		return err
	}

	now := time.Now().UTC().Truncate(time.Second)
	habit := models.Habit{
		ID:          uuid.New().String(),
		UserID:      user.ID,
		Name:        name,
		Description: c.Description,
		Color:       c.Color,
		Frequency:   constants.FrequencyDaily,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := ctx.Store.AddHabit(ctx.Ctx, habit); err != nil {
		return err
	}
	ctx.Bus.Publish(events.Event{Type: events.HabitCreated, UserID: user.ID, HabitID: habit.ID, Data: habit})

	fmt.Printf("Added habit: %s\n", habit.Name)
	return nil
}

type HabitListCmd struct {
	Archived bool `help:"Include archived habits."`
}

func (c *HabitListCmd) Run(ctx *cli.Context, parent *HabitCmd) error {
	user, err := ctx.FindUser(parent.User)
	if err != nil {
		return err
	}
	habits, err := ctx.Store.GetAllHabits(ctx.Ctx, user.ID, c.Archived)
	if err != nil {
		return err
	}
	if len(habits) == 0 {
		fmt.Println("No habits found.")
		return nil
	}

	today := cli.Today(user)
	done, err := ctx.Store.GetCompletedHabitIDs(ctx.Ctx, user.ID, today)
	if err != nil {
		return err
	}

	t := cli.NewTable("Habit", "Today", "Current", "Longest", "Last done")
	for _, h := range habits {
		name := h.Name
		if h.ArchivedAt != nil {
			name += " [ARCHIVED]"
		}
		mark := "·"
		if done[h.ID] {
			mark = "✓"
		}
		s := streak.Effective(h, today)
		last := "never"
		if s.LastCompletedDate != nil {
			last = *s.LastCompletedDate
		}
		t.Row(name, mark, fmt.Sprint(s.CurrentStreak), fmt.Sprint(s.LongestStreak), last)
	}
	fmt.Println(t)
	return nil
}

type HabitCompleteCmd struct {
	Name string `arg:"" help:"Habit name or id."`
}

func (c *HabitCompleteCmd) Run(ctx *cli.Context, parent *HabitCmd) error {
	return toggle(ctx, parent.User, c.Name, true)
}

type HabitUndoCmd struct {
	Name string `arg:"" help:"Habit name or id."`
}

func (c *HabitUndoCmd) Run(ctx *cli.Context, parent *HabitCmd) error {
	return toggle(ctx, parent.User, c.Name, false)
}

func toggle(ctx *cli.Context, userRef, habitRef string, complete bool) error {
	user, err := ctx.FindUser(userRef)
	if err != nil {
		return err
	}
	habit, err := ctx.FindHabit(user.ID, habitRef)
	if err != nil {
		return err
	}

	updated, err := ctx.Engine.Toggle(ctx.Ctx, habit.ID, user.ID, complete, cli.Today(user))
	if err != nil {
		return err
	}

	if complete {
		fmt.Printf("✓ %s done today. Streak: %s (best %d)\n",
			updated.Name, cli.StreakStyle.Render(fmt.Sprint(updated.CurrentStreak)), updated.LongestStreak)
	} else {
		fmt.Printf("Cleared today's completion of %s. Streak: %d (best %d)\n",
			updated.Name, updated.CurrentStreak, updated.LongestStreak)
	}
	return nil
}

type HabitStreakCmd struct {
	Name string `arg:"" optional:"" help:"Habit name or id (default: all habits)."`
}

func (c *HabitStreakCmd) Run(ctx *cli.Context, parent *HabitCmd) error {
	user, err := ctx.FindUser(parent.User)
	if err != nil {
		return err
	}
	today := cli.Today(user)

	var habits []models.Habit
	if c.Name != "" {
		h, err := ctx.FindHabit(user.ID, c.Name)
		if err != nil {
			return err
		}
		habits = []models.Habit{h}
	} else {
		habits, err = ctx.Store.GetAllHabits(ctx.Ctx, user.ID, false)
		if err != nil {
			return err
		}
	}
	if len(habits) == 0 {
		fmt.Println("No habits found.")
		return nil
	}

	for _, h := range habits {
		s := streak.Effective(h, today)
		fmt.Printf("%-*s %s current, %d longest\n", maxNameLen, truncate(h.Name, maxNameLen),
			cli.StreakStyle.Render(fmt.Sprintf("%3d", s.CurrentStreak)), s.LongestStreak)
	}
	return nil
}

type HabitLogCmd struct {
	Days int    `help:"Number of days to show." default:"14"`
	Name string `arg:"" optional:"" help:"Show log for a specific habit only."`
}

func (c *HabitLogCmd) Run(ctx *cli.Context, parent *HabitCmd) error {
	if c.Days < 1 || c.Days > constants.MaxHistoryDays {
		return fmt.Errorf("days must be between 1 and %d", constants.MaxHistoryDays)
	}
	user, err := ctx.FindUser(parent.User)
	if err != nil {
		return err
	}

	var habits []models.Habit
	if c.Name != "" {
		h, err := ctx.FindHabit(user.ID, c.Name)
		if err != nil {
			return err
		}
		habits = []models.Habit{h}
	} else {
		habits, err = ctx.Store.GetAllHabits(ctx.Ctx, user.ID, false)
		if err != nil {
			return err
		}
	}
	if len(habits) == 0 {
		fmt.Println("No habits found.")
		return nil
	}

	endDay := cli.Today(user)
	startDay, err := utils.AddDays(endDay, -(c.Days - 1))
	if err != nil {
		return err
	}
	days := make([]string, 0, c.Days)
	for i := 0; i < c.Days; i++ {
		d, _ := utils.AddDays(startDay, i)
		days = append(days, d)
	}

	fmt.Printf("Habit log (last %d days):\n\n", c.Days)
	fmt.Printf("%-*s", maxNameLen, "Habit")
	for _, d := range days {
		fmt.Printf(" %5s", d[5:7]+"/"+d[8:10])
	}
	fmt.Println()
	fmt.Println(strings.Repeat("-", maxNameLen+6*len(days)))

	for _, h := range habits {
		completions, err := ctx.Store.GetCompletionsInRange(ctx.Ctx, user.ID, h.ID, startDay, endDay)
		if err != nil {
			return err
		}
		done := make(map[string]bool, len(completions))
		for _, comp := range completions {
			done[comp.Day] = true
		}

		fmt.Printf("%-*s", maxNameLen, truncate(h.Name, maxNameLen))
		for _, d := range days {
			if done[d] {
				fmt.Printf(" %5s", "✓")
			} else {
				fmt.Printf(" %5s", "·")
			}
		}
		fmt.Println()
	}
	return nil
}

type HabitArchiveCmd struct {
	Name    string `arg:"" help:"Habit name or id."`
	Restore bool   `help:"Unarchive instead of archiving."`
}

func (c *HabitArchiveCmd) Run(ctx *cli.Context, parent *HabitCmd) error {
	user, err := ctx.FindUser(parent.User)
	if err != nil {
		return err
	}
	habit, err := ctx.FindHabit(user.ID, c.Name)
	if err != nil {
		return err
	}

	if c.Restore {
		if err := ctx.Store.UnarchiveHabit(ctx.Ctx, habit.ID, user.ID); err != nil {
			return err
		}
		ctx.Bus.Publish(events.Event{Type: events.HabitUnarchived, UserID: user.ID, HabitID: habit.ID})
		fmt.Printf("Unarchived habit: %s\n", habit.Name)
		return nil
	}

	if err := ctx.Store.ArchiveHabit(ctx.Ctx, habit.ID, user.ID); err != nil {
		return err
	}
	ctx.Bus.Publish(events.Event{Type: events.HabitArchived, UserID: user.ID, HabitID: habit.ID})
	fmt.Printf("Archived habit: %s\n", habit.Name)
	return nil
}

// truncate shortens s to n runes, marking the cut with an ellipsis
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n < 5 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
