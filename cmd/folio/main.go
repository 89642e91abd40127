// Command folio is a terminal client of folio-server. It shares the
// portal's client, session and workspace layers; the session is kept in a
// local badger store between invocations.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
	"github.com/joho/godotenv"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	commander.Register(&loginCmd{}, "session")
	commander.Register(&logoutCmd{}, "session")
	commander.Register(&whoamiCmd{}, "session")

	commander.Register(&portfoliosCmd{}, "portfolio")
	commander.Register(&transactionsCmd{}, "portfolio")
	commander.Register(&totalCmd{}, "portfolio")

	commander.Register(&searchCmd{}, "market")
	commander.Register(&metricsCmd{}, "market")
	commander.Register(&chartCmd{}, "market")

	// Optional; FOLIO_* may come from the real environment.
	_ = godotenv.Load()

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
