package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/core-tools/hsu-init/pkg/control"
	"github.com/core-tools/hsu-init/pkg/logsink"
	"github.com/core-tools/hsu-init/pkg/statefile"
	"github.com/core-tools/hsu-init/pkg/units"

	flags "github.com/jessevdk/go-flags"
)

type flagOptions struct {
	Socket    string        `long:"socket" description:"control socket of the running init"`
	StateFile string        `long:"state-file" description:"read this state file instead of asking the running init"`
	Timeout   time.Duration `long:"timeout" description:"how long to wait for the control socket" default:"3s"`
	Verbose   bool          `short:"v" long:"verbose" description:"log client activity to stderr"`
}

type statusCommand struct{}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(argv []string, stdout io.Writer) int {
	var opts flagOptions
	var parser = flags.NewParser(&opts, flags.HelpFlag)
	if _, err := parser.AddCommand("status", "Show the state of every unit", "", &statusCommand{}); err != nil {
		fmt.Fprintf(stdout, "Command setup failed: %v\n", err)
		return 1
	}
	parser.SubcommandsOptional = true

	_, err := parser.ParseArgs(argv)
	if err != nil {
		fmt.Fprintf(stdout, "Command line flags parsing failed: %v\n", err)
		return 1
	}

	level := "error"
	if opts.Verbose {
		level = "debug"
	}
	sink := logsink.NewWriterSink(logsink.Config{Level: level, Format: "console"}, os.Stderr)
	defer sink.Close()
	logger := sink.Logger("initctl: ")

	var statuses []units.Status
	if opts.StateFile != "" {
		doc, err := statefile.Read(opts.StateFile)
		if err != nil {
			fmt.Fprintf(stdout, "Failed to read state file: %v\n", err)
			return 1
		}
		statuses = doc.Units
	} else {
		socket := opts.Socket
		if socket == "" {
			socket = statefile.DefaultSocketPath()
		}

		ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
		defer cancel()

		conn, err := control.Dial(ctx, socket)
		if err != nil {
			fmt.Fprintf(stdout, "Failed to connect to %s: %v\n", socket, err)
			return 1
		}
		defer conn.Close()

		statuses, err = control.NewGRPCClientGateway(conn, logger).Status(ctx)
		if err != nil {
			fmt.Fprintf(stdout, "Status request failed: %v\n", err)
			return 1
		}
	}

	fmt.Fprint(stdout, statefile.Format(statuses))
	return 0
}
