package clip

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/atotto/clipboard"
)

type execSource struct{}

func newExec() (Source, error) {
	if clipboard.Unsupported {
		return nil, fmt.Errorf("no clipboard utility found on %s", runtime.GOOS)
	}
	return execSource{}, nil
}

func (execSource) Name() string { return "exec (wl-paste/xclip/xsel/pbpaste)" }

func (execSource) ReadText(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s, err := clipboard.ReadAll()
	return classifyExec(s, err)
}

// classifyExec maps helper-process outcomes onto the package errors. The
// paste helpers exit non-zero when there is nothing (or no text) to paste.
func classifyExec(s string, err error) (string, error) {
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", ErrNoText
		}
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return "", err
	}
	return text([]byte(s))
}
