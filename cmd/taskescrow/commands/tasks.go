package commands

import (
	"context"
	"log/slog"
	"os"

	"git.home.luguber.info/inful/taskescrow/internal/escrow"
	"git.home.luguber.info/inful/taskescrow/internal/identity"
)

// taskOutput is the JSON printed for a record.
type taskOutput struct {
	Slot  identity.Identity `json:"slot"`
	State escrow.State      `json:"state"`
	escrow.TaskEscrow
}

func newTaskOutput(slot identity.Identity, rec escrow.TaskEscrow) taskOutput {
	return taskOutput{Slot: slot, State: rec.State(), TaskEscrow: rec}
}

// CreateCmd implements the 'create' command.
type CreateCmd struct {
	Keypair   string `short:"k" required:"" help:"Depositor keypair file" type:"existingfile"`
	Recipient string `short:"r" required:"" help:"Recipient identity (base58)"`
	Amount    uint64 `short:"a" required:"" help:"Escrowed amount"`
	Task      string `short:"t" help:"Task slot identity (base58); a fresh one is generated when empty"`
}

func (c *CreateCmd) Run(g *Global, root *CLI) error {
	depositor, err := identity.LoadKeypairFile(c.Keypair)
	if err != nil {
		return err
	}
	recipient, err := identity.Parse(c.Recipient)
	if err != nil {
		return err
	}
	task, err := c.slot()
	if err != nil {
		return err
	}

	ctx := context.Background()
	rt, err := root.openRuntime(ctx)
	if err != nil {
		return err
	}
	defer closeRuntime(rt)

	msg := escrow.CreateTaskMessage(rt.Registry.Program(), task, recipient, c.Amount)
	rec, err := rt.Registry.CreateTask(ctx, escrow.CreateTaskAccounts{
		Task:      task,
		Depositor: depositor.Prove(msg),
		Recipient: recipient,
	}, c.Amount)
	if err != nil {
		return err
	}
	return writeJSON(g.out(), newTaskOutput(task, rec))
}

func (c *CreateCmd) slot() (identity.Identity, error) {
	if c.Task != "" {
		return identity.Parse(c.Task)
	}
	kp, err := identity.GenerateKeypair()
	if err != nil {
		return identity.Identity{}, err
	}
	slog.Debug("Generated task slot", slog.String("slot", kp.Identity().String()))
	return kp.Identity(), nil
}

// CompleteCmd implements the 'complete' command.
type CompleteCmd struct {
	Task string `arg:"" help:"Task slot identity (base58)"`
}

func (c *CompleteCmd) Run(g *Global, root *CLI) error {
	task, err := identity.Parse(c.Task)
	if err != nil {
		return err
	}

	ctx := context.Background()
	rt, err := root.openRuntime(ctx)
	if err != nil {
		return err
	}
	defer closeRuntime(rt)

	if err := rt.Registry.CompleteTask(ctx, escrow.CompleteTaskAccounts{Task: task}); err != nil {
		return err
	}
	rec, err := rt.Registry.Lookup(ctx, task)
	if err != nil {
		return err
	}
	return writeJSON(g.out(), newTaskOutput(task, rec))
}

// ShowCmd implements the 'show' command.
type ShowCmd struct {
	Task string `arg:"" help:"Task slot identity (base58)"`
}

func (s *ShowCmd) Run(g *Global, root *CLI) error {
	task, err := identity.Parse(s.Task)
	if err != nil {
		return err
	}

	ctx := context.Background()
	rt, err := root.openRuntime(ctx)
	if err != nil {
		return err
	}
	defer closeRuntime(rt)

	rec, err := rt.Registry.Lookup(ctx, task)
	if err != nil {
		return err
	}
	return writeJSON(g.out(), newTaskOutput(task, rec))
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
