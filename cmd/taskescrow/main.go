package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/taskescrow/cmd/taskescrow/commands"
	ferrors "git.home.luguber.info/inful/taskescrow/internal/foundation/errors"
	"git.home.luguber.info/inful/taskescrow/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("taskescrow"),
		kong.Description("Task escrow registry: create, complete and inspect escrowed task records."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	err := parser.Run(&commands.Global{}, cli)
	ferrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
}
