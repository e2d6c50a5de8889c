package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/julianstephens/habitline/internal/models"
	"github.com/julianstephens/habitline/internal/utils"
)

// ConflictType represents the type of validation conflict
type ConflictType string

const (
	ConflictStreakInvariant     ConflictType = "streak_invariant"
	ConflictNegativeStreak      ConflictType = "negative_streak"
	ConflictDuplicateActiveName ConflictType = "duplicate_active_name"
	ConflictInvalidDate         ConflictType = "invalid_date"
	ConflictFutureCompletion    ConflictType = "future_completion"
)

// Conflict represents a detected inconsistency in stored habits
type Conflict struct {
	Type        ConflictType
	Description string
	HabitIDs    []string
}

// ValidationResult contains all detected conflicts
type ValidationResult struct {
	Conflicts []Conflict
}

// HasConflicts returns true if there are any conflicts
func (vr *ValidationResult) HasConflicts() bool {
	return len(vr.Conflicts) > 0
}

// FormatReport returns a human-readable report of all conflicts
func (vr *ValidationResult) FormatReport() string {
	if !vr.HasConflicts() {
		return "No conflicts detected."
	}

	var b strings.Builder
	b.WriteString("Conflicts detected:\n")
	for _, conflict := range vr.Conflicts {
		fmt.Fprintf(&b, "- %s\n", conflict.Description)
	}
	return b.String()
}

// Validator audits stored habits for broken invariants
type Validator struct{}

// New creates a new Validator
func New() *Validator {
	return &Validator{}
}

// CheckHabits validates cached streak fields and active-name uniqueness.
// today is used to flag completion dates recorded in the future.
func (v *Validator) CheckHabits(habits []models.Habit, today string) ValidationResult {
	var result ValidationResult
	activeNames := make(map[string][]models.Habit)

	for _, h := range habits {
		if h.CurrentStreak < 0 || h.LongestStreak < 0 {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictNegativeStreak,
				Description: fmt.Sprintf("habit %q has a negative streak (current %d, longest %d)", h.Name, h.CurrentStreak, h.LongestStreak),
				HabitIDs:    []string{h.ID},
			})
		}
		if h.LongestStreak < h.CurrentStreak {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictStreakInvariant,
				Description: fmt.Sprintf("habit %q has longest streak %d below current streak %d", h.Name, h.LongestStreak, h.CurrentStreak),
				HabitIDs:    []string{h.ID},
			})
		}
		if h.LastCompletedDate != nil {
			if !utils.ValidateDate(*h.LastCompletedDate) {
				result.Conflicts = append(result.Conflicts, Conflict{
					Type:        ConflictInvalidDate,
					Description: fmt.Sprintf("habit %q has malformed last completed date %q", h.Name, *h.LastCompletedDate),
					HabitIDs:    []string{h.ID},
				})
			} else if today != "" && *h.LastCompletedDate > today {
				result.Conflicts = append(result.Conflicts, Conflict{
					Type:        ConflictFutureCompletion,
					Description: fmt.Sprintf("habit %q was last completed in the future (%s)", h.Name, *h.LastCompletedDate),
					HabitIDs:    []string{h.ID},
				})
			}
		}
		if h.StartDate != nil && *h.StartDate != "" && !utils.ValidateDate(*h.StartDate) {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictInvalidDate,
				Description: fmt.Sprintf("habit %q has malformed start date %q", h.Name, *h.StartDate),
				HabitIDs:    []string{h.ID},
			})
		}
		if h.ArchivedAt == nil {
			key := h.UserID + "\x00" + utils.NameKey(h.Name)
			activeNames[key] = append(activeNames[key], h)
		}
	}

	keys := make([]string, 0, len(activeNames))
	for k := range activeNames {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		group := activeNames[k]
		if len(group) < 2 {
			continue
		}
		ids := make([]string, 0, len(group))
		for _, h := range group {
			ids = append(ids, h.ID)
		}
		result.Conflicts = append(result.Conflicts, Conflict{
			Type:        ConflictDuplicateActiveName,
			Description: fmt.Sprintf("%d active habits share the name %q", len(group), group[0].Name),
			HabitIDs:    ids,
		})
	}

	return result
}
