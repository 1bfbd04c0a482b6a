package terminal

import (
	"context"
	"io"
	"os"

	"github.com/de-tools/data-profiler/pkg/runtime/terminal/commands"
	"github.com/spf13/cobra"
)

// CLI represents the command-line interface
type CLI struct {
	reporter *Reporter
	rootCmd  *cobra.Command
}

// Options contain configuration for the CLI
type Options struct {
	Output  io.Writer
	Version string
}

// NewCLI creates a new CLI instance
func NewCLI(opts Options) *CLI {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	cli := &CLI{
		reporter: NewReporter(opts.Output),
	}

	cli.rootCmd = cli.newRootCmd(opts)
	return cli
}

func (cli *CLI) Execute(ctx context.Context) error {
	return cli.rootCmd.ExecuteContext(ctx)
}

func (cli *CLI) newRootCmd(opts Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "profiler",
		Short:         "CSV data profiling tool",
		Version:       opts.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(opts.Output)

	cmd.AddCommand(commands.NewProfileCmd(cli.reporter, opts.Version))

	return cmd
}
