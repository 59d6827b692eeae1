package clip

import (
	"context"
	"fmt"

	"golang.design/x/clipboard"
)

type nativeSource struct{}

// newNative initialises golang.design/x/clipboard. Init is called here rather
// than in init() so that CLI sub-commands that never read the clipboard don't
// touch the display server.
func newNative() (Source, error) {
	if err := clipboard.Init(); err != nil {
		return nil, fmt.Errorf("clipboard init: %w", err)
	}
	return nativeSource{}, nil
}

func (nativeSource) Name() string { return "native (golang.design/x/clipboard)" }

// ReadText returns ErrEmpty both for an empty clipboard and for one holding
// only non-text formats; the library does not tell them apart.
func (nativeSource) ReadText(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return text(clipboard.Read(clipboard.FmtText))
}
