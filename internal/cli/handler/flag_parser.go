package handler

import (
	"fmt"
	"strings"

	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/types"
)

// RequireID extracts a positive ID flag
func (a *Arguments) RequireID(name string) (int, error) {
	v := a.GetInt(name, 0)
	if v <= 0 {
		return 0, fmt.Errorf("--%s must be greater than 0: %w", name, models.ErrInvalidInput)
	}
	return v, nil
}

// BoardID extracts a board ID flag
func (a *Arguments) BoardID(name string) (types.BoardID, error) {
	id, err := a.RequireID(name)
	return types.BoardID(id), err
}

// ColumnID extracts a column ID flag
func (a *Arguments) ColumnID(name string) (types.ColumnID, error) {
	id, err := a.RequireID(name)
	return types.ColumnID(id), err
}

// CardID extracts a card ID flag
func (a *Arguments) CardID(name string) (types.CardID, error) {
	id, err := a.RequireID(name)
	return types.CardID(id), err
}

// RequireString extracts a non-blank string flag
func (a *Arguments) RequireString(name string) (string, error) {
	v := strings.TrimSpace(a.GetString(name, ""))
	if v == "" {
		return "", fmt.Errorf("--%s is required: %w", name, models.ErrInvalidInput)
	}
	return v, nil
}

// Position extracts a non-negative position flag
func (a *Arguments) Position(name string) (int, error) {
	v := a.GetInt(name, 0)
	if v < 0 {
		return 0, fmt.Errorf("--%s must not be negative: %w", name, models.ErrInvalidInput)
	}
	return v, nil
}

// OptionalString returns a pointer to the flag value when it was set
func (a *Arguments) OptionalString(name string) *string {
	if !a.Has(name) {
		return nil
	}
	v := a.GetString(name, "")
	return &v
}

// OptionalInt returns a pointer to the flag value when it was set
func (a *Arguments) OptionalInt(name string) *int {
	if !a.Has(name) {
		return nil
	}
	v := a.GetInt(name, 0)
	return &v
}

// UserIDs converts a string slice flag to user IDs
func (a *Arguments) UserIDs(name string) []types.UserID {
	names := a.GetStringSlice(name, nil)
	if names == nil {
		return nil
	}
	ids := make([]types.UserID, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			ids = append(ids, types.UserID(n))
		}
	}
	return ids
}

// LabelIDs converts an int slice flag to label IDs
func (a *Arguments) LabelIDs(name string) []types.LabelID {
	raw := a.GetIntSlice(name, nil)
	if raw == nil {
		return nil
	}
	ids := make([]types.LabelID, len(raw))
	for i, v := range raw {
		ids[i] = types.LabelID(v)
	}
	return ids
}
