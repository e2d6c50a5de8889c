package system

import (
	"errors"
	"fmt"
	"strings"

	"github.com/julianstephens/habitline/internal/auth"
	"github.com/julianstephens/habitline/internal/cli"
	"github.com/julianstephens/habitline/internal/keyring"
	"github.com/julianstephens/habitline/internal/storage/postgres"
)

type KeyringCmd struct {
	SetDB        KeyringSetDBCmd  `cmd:"" name:"set-db" help:"Store a PostgreSQL connection string in the OS keyring."`
	SetJWTSecret KeyringSetJWTCmd `cmd:"" name:"set-jwt-secret" help:"Store the token signing secret in the OS keyring."`
	Delete       KeyringDeleteCmd `cmd:"" help:"Remove a stored secret from the OS keyring."`
	Status       KeyringStatusCmd `cmd:"" help:"Check OS keyring availability."`
}

// KeyringSetDBCmd stores database connection credentials in the OS keyring
type KeyringSetDBCmd struct {
	ConnectionString string `arg:"" help:"PostgreSQL connection string to store in keyring."`
}

func (cmd *KeyringSetDBCmd) Run(ctx *cli.Context) error {
	if !strings.HasPrefix(cmd.ConnectionString, "postgres://") &&
		!strings.HasPrefix(cmd.ConnectionString, "postgresql://") &&
		!strings.Contains(cmd.ConnectionString, "host=") {
		return errors.New("connection string must be a valid PostgreSQL connection string")
	}

	if _, err := postgres.ValidateConnString(cmd.ConnectionString); err != nil {
		if !errors.Is(err, postgres.ErrEmbeddedCredentials) {
			return fmt.Errorf("invalid connection string: %w", err)
		}
		// the keyring is encrypted, so an embedded password is acceptable here
		fmt.Println(cli.WarningStyle.Render("⚠️  Connection string contains embedded credentials; storing it in the encrypted OS keyring."))
	}

	if err := keyring.SetConnectionString(cmd.ConnectionString); err != nil {
		return err
	}

	fmt.Println(cli.SuccessStyle.Render("✓ Connection string stored successfully in OS keyring"))
	fmt.Println("  habitline will use it whenever --db is not given")
	return nil
}

// KeyringSetJWTCmd stores the JWT signing secret in the OS keyring
type KeyringSetJWTCmd struct {
	Secret string `arg:"" help:"Signing secret (at least 16 characters)."`
}

func (cmd *KeyringSetJWTCmd) Run(ctx *cli.Context) error {
	if len(cmd.Secret) < auth.MinSecretLen {
		return fmt.Errorf("JWT secret must be at least %d characters", auth.MinSecretLen)
	}
	if err := keyring.SetJWTSecret(cmd.Secret); err != nil {
		return err
	}
	fmt.Println(cli.SuccessStyle.Render("✓ JWT secret stored successfully in OS keyring"))
	return nil
}

// KeyringDeleteCmd removes a stored secret from the OS keyring
type KeyringDeleteCmd struct {
	Secret string `arg:"" optional:"" enum:"db,jwt-secret" default:"db" help:"Which secret to delete (db or jwt-secret)."`
}

func (cmd *KeyringDeleteCmd) Run(ctx *cli.Context) error {
	var (
		err  error
		what string
	)
	switch cmd.Secret {
	case "jwt-secret":
		what = "JWT secret"
		err = keyring.DeleteJWTSecret()
	default:
		what = "connection string"
		err = keyring.DeleteConnectionString()
	}
	if errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("no %s found in keyring", what)
	}
	if err != nil {
		return err
	}

	fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("✓ %s deleted from OS keyring", what)))
	return nil
}

// KeyringStatusCmd checks the availability of the OS keyring
type KeyringStatusCmd struct{}

func (cmd *KeyringStatusCmd) Run(ctx *cli.Context) error {
	if !keyring.IsAvailable() {
		fmt.Println(cli.DangerStyle.Render("❌ OS keyring is not available on this system"))
		return errors.New("keyring unavailable")
	}
	fmt.Println(cli.SuccessStyle.Render("✓ OS keyring is available"))

	if connStr, err := keyring.GetConnectionString(); err == nil {
		fmt.Printf("✓ Connection string is stored in keyring: %s\n", maskPassword(connStr))
	} else {
		fmt.Println("ℹ No connection string stored in keyring")
	}
	if _, err := keyring.GetJWTSecret(); err == nil {
		fmt.Println("✓ JWT secret is stored in keyring")
	} else {
		fmt.Println("ℹ No JWT secret stored in keyring")
	}
	return nil
}

// maskPassword masks passwords in connection strings for display
func maskPassword(connStr string) string {
	if strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://") {
		if idx := strings.Index(connStr, "://"); idx != -1 {
			remaining := connStr[idx+3:]
			if atIdx := strings.LastIndex(remaining, "@"); atIdx != -1 {
				userInfo := remaining[:atIdx]
				if colonIdx := strings.Index(userInfo, ":"); colonIdx != -1 {
					return connStr[:idx+3] + userInfo[:colonIdx] + ":****" + connStr[idx+3+atIdx:]
				}
			}
		}
	}

	if strings.Contains(connStr, "password=") {
		parts := strings.Fields(connStr)
		for i, part := range parts {
			if strings.HasPrefix(part, "password=") {
				parts[i] = "password=****"
			}
		}
		return strings.Join(parts, " ")
	}
	return connStr
}
