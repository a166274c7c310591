// Command switchctl is the operator CLI for a running switchd daemon,
// generalizing the teacher's cli/cli.go + cli/cmd.go REPL (a hand-rolled
// readline loop dispatching into an RPC-client command table) into a
// cobra command tree of one-shot subcommands talking the HTTP wire
// protocol via pkg/switchclient.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "switchctl:", err)
		os.Exit(1)
	}
}

var (
	addr    string
	verbose bool
	debug   bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "switchctl",
		Short:         "Control and inspect a running switchd broker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&addr, "port", "http://127.0.0.1:8080", "switchd base URL")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "debug output")

	root.AddCommand(
		newListCmd(),
		newTailCmd(),
		newMscgenCmd(),
		newAckCmd(),
		newDestroyCmd(),
		newDiagnosticsCmd(),
		newCallCmd(),
		newServeCmd(),
	)
	return root
}
