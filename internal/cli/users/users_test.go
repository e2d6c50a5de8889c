package users

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/julianstephens/habitline/internal/auth"
	"github.com/julianstephens/habitline/internal/cli"
	"github.com/julianstephens/habitline/internal/constants"
	"github.com/julianstephens/habitline/internal/errors"
	"github.com/julianstephens/habitline/internal/events"
	"github.com/julianstephens/habitline/internal/storage/sqlite"
)

func TestUserCommands(t *testing.T) {
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "users.db"))
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	bus := events.NewBus(constants.EventQueueSize)
	defer bus.Close()
	defer store.Close()
	c := &cli.Context{Ctx: ctx, Store: store, Bus: bus}

	if err := (&UserListCmd{}).Run(c); err != nil {
		t.Fatalf("UserListCmd.Run() on empty store failed: %v", err)
	}

	add := &UserAddCmd{Email: " New@Example.com ", Password: "hunter22", DisplayName: "Newbie", Timezone: "Europe/Berlin"}
	if err := add.Run(c); err != nil {
		t.Fatalf("UserAddCmd.Run() failed: %v", err)
	}

	u, err := store.GetUserByEmail(ctx, "new@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail() failed: %v", err)
	}
	if u.Timezone != "Europe/Berlin" || u.Settings.Locale != constants.DefaultLocale {
		t.Errorf("stored user = %+v, want the given timezone and default settings", u)
	}
	if err := auth.CheckPassword(u.PasswordHash, "hunter22"); err != nil {
		t.Errorf("stored password hash does not verify: %v", err)
	}

	if err := add.Run(c); !errors.Is(err, errors.ErrConflict) {
		t.Errorf("duplicate UserAddCmd.Run() error = %v, want ErrConflict", err)
	}

	bad := &UserAddCmd{Email: "bad@example.com", Password: "123", DisplayName: "Bad", Timezone: "UTC"}
	if err := bad.Run(c); !errors.Is(err, errors.ErrValidation) {
		t.Errorf("short password error = %v, want ErrValidation", err)
	}

	if err := (&UserListCmd{}).Run(c); err != nil {
		t.Errorf("UserListCmd.Run() failed: %v", err)
	}
}
