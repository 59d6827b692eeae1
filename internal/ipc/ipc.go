// Package ipc locates and opens the local Unix socket the clipkeep daemon
// serves its history service on. CLI sub-commands (history, status) dial it;
// the daemon listens on it.
package ipc

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"time"
)

const socketName = "clipkeep.sock"

// SocketPath returns the IPC socket path:
//
//   - $CLIPKEEP_SOCKET if set
//   - $XDG_RUNTIME_DIR/clipkeep.sock on Linux desktops
//   - $TMPDIR/clipkeep.sock otherwise
func SocketPath() string {
	if s := os.Getenv("CLIPKEEP_SOCKET"); s != "" {
		return s
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, socketName)
	}
	return filepath.Join(os.TempDir(), socketName)
}

// IsRunning reports whether a daemon appears to be listening on the IPC
// socket. It does a cheap dial-and-close; no data is exchanged.
func IsRunning() bool {
	c, err := net.DialTimeout("unix", SocketPath(), time.Second)
	if err != nil {
		return false
	}
	_ = c.Close()
	return true
}

// ErrInUse is returned by Listen when another daemon owns the socket.
var ErrInUse = errors.New("ipc: socket in use by another daemon")

// Listen creates the IPC listener, removing a stale socket left by a crashed
// run. It refuses to steal a socket that still accepts connections.
func Listen() (net.Listener, error) {
	path := SocketPath()
	if IsRunning() {
		return nil, fmt.Errorf("%w: %s", ErrInUse, path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("ipc: remove stale socket: %w", err)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("ipc: listen %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("ipc: restrict socket: %w", err)
	}
	return ln, nil
}
