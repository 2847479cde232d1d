// Package console reads administrative commands from the process's standard
// input: /END, /ANNOUNCE <text> and /KICK <username>.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dtregea/roomchat-server/internal/core"
)

// Console is the line-oriented operator surface. Operator feedback goes to
// out; server-side effects go through the hub.
type Console struct {
	hub  *core.Hub
	log  *zerolog.Logger
	in   io.Reader
	out  io.Writer
	stop func()
}

// New builds a console reading from in and reporting to out. stop initiates
// process shutdown and is invoked on /END, after the hub announcement.
func New(hub *core.Hub, logger *zerolog.Logger, in io.Reader, out io.Writer, stop func()) *Console {
	return &Console{
		hub:  hub,
		log:  logger,
		in:   in,
		out:  out,
		stop: stop,
	}
}

// Run blocks reading commands until input is exhausted or ctx is canceled.
func (c *Console) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		c.Execute(scanner.Text())
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.ErrClosedPipe) {
		return fmt.Errorf("read console: %w", err)
	}
	return nil
}

// Execute runs a single command line. The verb is case-insensitive.
func (c *Console) Execute(line string) {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 {
		return
	}

	switch strings.ToUpper(fields[0]) {
	case "/END":
		fmt.Fprintln(c.out, "Shutting down")
		c.stop()
	case "/ANNOUNCE":
		text := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))
		c.hub.Announce(text)
	case "/KICK":
		var username string
		if len(fields) > 1 {
			username = fields[1]
		}
		if err := c.hub.Kick(username); err != nil {
			fmt.Fprintln(c.out, "User not found")
		}
	default:
		fmt.Fprintln(c.out, "Command not recognized")
	}
}
