package store

import (
	"github.com/adrg/xdg"
)

// appDir is the fixed subpath under the per-user data directory.
const appDir = "clipkeep"

// DefaultPath returns the per-user history database location, creating the
// application data directory if needed.
func DefaultPath() (string, error) {
	return xdg.DataFile(appDir + "/history.db")
}
