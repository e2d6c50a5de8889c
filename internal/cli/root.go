package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/julianstephens/habitline/internal/constants"
	"github.com/julianstephens/habitline/internal/errors"
	"github.com/julianstephens/habitline/internal/events"
	"github.com/julianstephens/habitline/internal/keyring"
	"github.com/julianstephens/habitline/internal/models"
	"github.com/julianstephens/habitline/internal/storage"
	"github.com/julianstephens/habitline/internal/storage/postgres"
	"github.com/julianstephens/habitline/internal/storage/sqlite"
	"github.com/julianstephens/habitline/internal/streak"
	"github.com/julianstephens/habitline/internal/utils"
)

// EnvDBConnection may hold a PostgreSQL connection string, credentials included
const EnvDBConnection = "HABITLINE_DB_CONNECTION"

type Context struct {
	Store  storage.Provider
	Engine *streak.Engine
	Bus    *events.Bus
	Ctx    context.Context
}

var (
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	HeaderStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	SuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	WarningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Italic(true)
	DangerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	MutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	StreakStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true)
)

// NewTable returns a bordered table with styled headers
func NewTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(MutedStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return HeaderStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

// OpenStore picks the storage backend. An explicit --db value wins; a
// PostgreSQL URL given there must not embed a password. Otherwise the
// environment and then the OS keyring are consulted, falling back to the
// default SQLite database.
func OpenStore(db string) (storage.Provider, error) {
	if db != "" {
		if utils.IsPostgresConnString(db) || strings.Contains(db, "host=") {
			if postgres.HasEmbeddedCredentials(db) {
				return nil, errors.New("PostgreSQL connection strings with embedded credentials are not allowed on the command line. " +
					"Use 'habitline keyring set-db', the " + EnvDBConnection + " environment variable, or a .pgpass file instead")
			}
			if _, err := postgres.ValidateConnString(db); err != nil {
				return nil, err
			}
			return postgres.New(db), nil
		}
		return newSQLiteStore(db)
	}

	if connStr := os.Getenv(EnvDBConnection); connStr != "" {
		return postgres.New(connStr), nil
	}
	if connStr, err := keyring.GetConnectionString(); err == nil {
		return postgres.New(connStr), nil
	}

	return newSQLiteStore(constants.DefaultConfigPath)
}

func newSQLiteStore(path string) (storage.Provider, error) {
	expanded, err := utils.ExpandPath(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand database path: %w", err)
	}
	return sqlite.NewStore(expanded), nil
}

// FindUser resolves a user by email or id
func (c *Context) FindUser(ref string) (models.User, error) {
	if u, err := c.Store.GetUserByEmail(c.Ctx, ref); err == nil {
		return u, nil
	} else if !errors.Is(err, errors.ErrNotFound) {
		return models.User{}, err
	}
	return c.Store.GetUser(c.Ctx, ref)
}

// FindHabit resolves one of the user's habits by name, case-insensitively,
// or by id. Active habits are preferred over archived ones.
func (c *Context) FindHabit(userID, ref string) (models.Habit, error) {
	habits, err := c.Store.GetAllHabits(c.Ctx, userID, true)
	if err != nil {
		return models.Habit{}, err
	}

	key := utils.NameKey(ref)
	var archived *models.Habit
	for i, h := range habits {
		if h.ID == ref {
			return h, nil
		}
		if utils.NameKey(h.Name) != key {
			continue
		}
		if h.ArchivedAt == nil {
			return h, nil
		}
		if archived == nil {
			archived = &habits[i]
		}
	}
	if archived != nil {
		return *archived, nil
	}
	return models.Habit{}, errors.NotFoundf("habit %q", ref)
}

// Today returns the current day in the user's timezone
func Today(u models.User) string {
	day, err := utils.GetTodayInTimezone(u.Timezone)
	if err != nil {
		day, _ = utils.GetTodayInTimezone("UTC")
	}
	return day
}
