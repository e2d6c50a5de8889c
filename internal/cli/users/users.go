package users

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/habitline/internal/auth"
	"github.com/julianstephens/habitline/internal/cli"
	"github.com/julianstephens/habitline/internal/constants"
	"github.com/julianstephens/habitline/internal/events"
	"github.com/julianstephens/habitline/internal/models"
	"github.com/julianstephens/habitline/internal/validation"
)

type UserCmd struct {
	Add  UserAddCmd  `cmd:"" help:"Create a user account."`
	List UserListCmd `cmd:"" help:"List user accounts."`
}

type UserAddCmd struct {
	Email       string `arg:"" help:"Email address."`
	Password    string `help:"Account password." env:"HABITLINE_USER_PASSWORD" required:""`
	DisplayName string `help:"Display name." required:""`
	Timezone    string `help:"IANA timezone that defines the user's calendar day." default:"UTC"`
}

func (c *UserAddCmd) Run(ctx *cli.Context) error {
	if err := validation.First(
		validation.ValidateEmail(c.Email),
		validation.ValidatePassword(c.Password),
		validation.ValidateDisplayName(c.DisplayName),
		validation.ValidateTimezone(c.Timezone),
	); err != nil {
		return err
	}

	hash, err := auth.HashPassword(c.Password)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Truncate(time.Second)
	user := models.User{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(strings.TrimSpace(c.Email)),
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(c.DisplayName),
		Timezone:     c.Timezone,
		Settings: models.UserSettings{
			WeekStart:                 constants.DefaultWeekStart,
			Locale:                    constants.DefaultLocale,
			NotificationsEmailEnabled: constants.DefaultNotificationsEmailEnabled,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := ctx.Store.AddUser(ctx.Ctx, user); err != nil {
		return err
	}
	ctx.Bus.Publish(events.Event{Type: events.UserCreated, UserID: user.ID, Data: user})

	fmt.Printf("Added user: %s (%s)\n", user.Email, user.ID)
	return nil
}

type UserListCmd struct{}

func (c *UserListCmd) Run(ctx *cli.Context) error {
	users, err := ctx.Store.GetAllUsers(ctx.Ctx)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		fmt.Println("No users found.")
		return nil
	}

	t := cli.NewTable("Email", "Name", "Timezone", "ID")
	for _, u := range users {
		t.Row(u.Email, u.DisplayName, u.Timezone, u.ID)
	}
	fmt.Println(t)
	return nil
}
