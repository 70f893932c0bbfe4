package user

import (
	"fmt"
	"os"
	"os/user"

	"github.com/google/uuid"
	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/types"
)

// EnvUser overrides the acting user for CLI commands
const EnvUser = "TABLERO_USER"

// GetCurrentUsername returns the current system username.
// It tries multiple methods with fallbacks:
// 1. TABLERO_USER - explicit identity handed down by the auth layer
// 2. user.Current() - gets username from OS
// 3. USER environment variable - fallback for restricted environments
// 4. "unknown" - final fallback to ensure a non-empty value
func GetCurrentUsername() string {
	if name := os.Getenv(EnvUser); name != "" {
		return name
	}

	currentUser, err := user.Current()
	if err != nil || currentUser.Username == "" {
		username := os.Getenv("USER")
		if username == "" {
			return "unknown"
		}
		return username
	}
	return currentUser.Username
}

// NewSession returns a session identifier unique to this process, so the
// process can recognize its own events when they come back over the channel
func NewSession() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.NewString()[:8])
}

// CurrentActor returns the acting user with a fresh session
func CurrentActor() models.Actor {
	return models.Actor{
		User:    types.UserID(GetCurrentUsername()),
		Session: NewSession(),
	}
}
