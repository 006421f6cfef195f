package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/taskescrow/internal/escrow"
	"git.home.luguber.info/inful/taskescrow/internal/logfields"
	"git.home.luguber.info/inful/taskescrow/internal/version"
)

// HandshakeCmd implements the 'handshake' command.
type HandshakeCmd struct{}

func (h *HandshakeCmd) Run(g *Global, root *CLI) error {
	ctx := context.Background()
	rt, err := root.openRuntime(ctx)
	if err != nil {
		return err
	}
	defer closeRuntime(rt)

	ref := uuid.NewString()
	if err := rt.Registry.Initialize(ctx, escrow.InitializeAccounts{}); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.out(), "Is initialized! program=%s reference=%s\n", rt.Registry.Program(), ref)
	return nil
}

// GreetCmd implements the 'greet' command: the bare handshake with no data
// model, store or observers.
type GreetCmd struct{}

func (c *GreetCmd) Run(g *Global, _ *CLI) error {
	program := escrow.ProgramID()
	slog.Info(escrow.Greeting(program), logfields.ProgramID(program.String()))
	_, _ = fmt.Fprintln(g.out(), escrow.Greeting(program))
	return nil
}

// VersionCmd implements the 'version' command.
type VersionCmd struct{}

func (v *VersionCmd) Run(g *Global, _ *CLI) error {
	_, _ = fmt.Fprintln(g.out(), version.String())
	return nil
}
