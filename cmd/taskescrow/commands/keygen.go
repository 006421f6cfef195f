package commands

import (
	"fmt"

	ferrors "git.home.luguber.info/inful/taskescrow/internal/foundation/errors"
	"git.home.luguber.info/inful/taskescrow/internal/identity"
)

// KeygenCmd implements the 'keygen' command.
type KeygenCmd struct {
	Output string `short:"o" required:"" help:"Keypair file to write"`
	Force  bool   `help:"Overwrite an existing keypair file"`
}

func (k *KeygenCmd) Run(g *Global, _ *CLI) error {
	if fileExists(k.Output) && !k.Force {
		return ferrors.AlreadyExistsError("keypair file already exists (use --force to overwrite)").
			WithContext("path", k.Output).
			Build()
	}
	kp, err := identity.GenerateKeypair()
	if err != nil {
		return err
	}
	if err := kp.SaveFile(k.Output); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(g.out(), kp.Identity().String())
	return nil
}
