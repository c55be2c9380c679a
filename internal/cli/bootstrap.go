// Package cli provides CLI commands for the flotilla application.
package cli

import (
	"bufio"
	gocontext "context"
	"fmt"
	"io"
	"strings"

	"github.com/example/flotilla/internal/ctxutil"
	"github.com/example/flotilla/internal/wire"
)

// NewContext creates a context.Background() with the configured actor embedded.
// CLI commands should use this instead of context.Background() directly.
func NewContext() gocontext.Context {
	ctx := gocontext.Background()
	if actor := wire.Config().Actor; actor != "" {
		return ctxutil.WithActorID(ctx, actor)
	}
	return ctx
}

// confirmPrompt asks a yes/no question on out and reads the answer from in.
func confirmPrompt(in io.Reader, out io.Writer, msg string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", msg)
	reader := bufio.NewReader(in)
	response, err := reader.ReadString('\n')
	if err != nil && response == "" {
		return false
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
