package models

import (
	"errors"
	"strings"
	"time"
)

// Character identifies whose storage a session manages
type Character struct {
	ID      string `json:"id"`       // stable character id, half of the record key
	Name    string `json:"name"`     // display name
	WorldID string `json:"world_id"` // world the character is currently loaded into

	// Session state
	LoadedAt  time.Time `json:"loaded_at"`
	LastSaved time.Time `json:"last_saved,omitempty"`
}

// Validate checks that the character can be used as a record key
func (c *Character) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return errors.New("character id is required")
	}
	if strings.TrimSpace(c.WorldID) == "" {
		return errors.New("world id is required")
	}
	return nil
}

// DisplayName returns the name, falling back to the id
func (c *Character) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

// IsLoaded checks if the character is attached to a world
func (c *Character) IsLoaded() bool {
	return !c.LoadedAt.IsZero()
}
