package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/and161185/docsnap/internal/errs"
)

// Exit codes.
const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
)

const restoreUsage = "usage: docsnap restore [collection] <runFolder>"

// run executes the command tree and maps the outcome to an exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	err := newApp(stdout, stderr).Run(ctx, args)
	if err == nil {
		return exitOK
	}

	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		if msg := err.Error(); msg != "" {
			fmt.Fprintln(stderr, msg)
		}
		return ec.ExitCode()
	}
	fmt.Fprintf(stderr, "docsnap: %v\n", err)
	return exitFail
}

func newApp(stdout, stderr io.Writer) *cli.Command {
	root := &cli.Command{
		Name:      "docsnap",
		Usage:     "Type-preserving snapshot and restore of MongoDB collections",
		Version:   version,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags:     globalFlags(),
		// exit codes are mapped in run
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
		Action:         rootAction,
		Commands: []*cli.Command{
			{
				Name:      "backup",
				Usage:     "Write one collection, or all of them, into a new run folder",
				ArgsUsage: "[collection]",
				Action:    backupAction,
			},
			{
				Name:      "restore",
				Usage:     "Replace one collection, or all of them, from a run folder",
				ArgsUsage: "[collection] <runFolder>",
				Action:    restoreAction,
			},
			{
				Name:   "runs",
				Usage:  "List run folders, newest first",
				Action: runsAction,
			},
			{
				Name:  "history",
				Usage: "Show recent journal records",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20, Usage: "number of records"},
				},
				Action: historyAction,
			},
			{
				Name:  "version",
				Usage: "Print version information",
				Action: func(_ context.Context, cmd *cli.Command) error {
					fmt.Fprintf(cmd.Root().Writer, "docsnap %s (%s)\n", version, buildDate)
					return nil
				},
			},
		},
	}
	for _, sub := range root.Commands {
		sub.ExitErrHandler = root.ExitErrHandler
	}
	return root
}

// rootAction handles a missing or unknown command.
func rootAction(ctx context.Context, cmd *cli.Command) error {
	_ = cli.ShowAppHelp(cmd)
	if cmd.Args().Len() == 0 {
		return cli.Exit("", exitUsage)
	}
	return cli.Exit(fmt.Sprintf("unknown command %q", cmd.Args().First()), exitUsage)
}

func backupAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() > 1 {
		return cli.Exit("usage: docsnap backup [collection]", exitUsage)
	}
	app, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	rep, err := app.orch.Backup(ctx, cmd.Args().First())
	printReport(cmd.Root().Writer, rep)
	app.pushMetrics(ctx)
	return err
}

func restoreAction(ctx context.Context, cmd *cli.Command) error {
	collection, runFolder, err := parseRestoreArgs(cmd.Args().Slice())
	if err != nil {
		return cli.Exit(fmt.Sprintf("%v\n%s", err, restoreUsage), exitUsage)
	}
	app, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	rep, err := app.orch.Restore(ctx, collection, runFolder)
	printReport(cmd.Root().Writer, rep)
	app.pushMetrics(ctx)
	return err
}

// parseRestoreArgs accepts "<runFolder>" or "<collection> <runFolder>".
func parseRestoreArgs(args []string) (collection, runFolder string, err error) {
	switch len(args) {
	case 0:
		return "", "", errs.ErrRunFolderRequired
	case 1:
		return "", args[0], nil
	case 2:
		if args[1] == "" {
			return "", "", errs.ErrRunFolderRequired
		}
		return args[0], args[1], nil
	default:
		return "", "", fmt.Errorf("too many arguments")
	}
}

func runsAction(ctx context.Context, cmd *cli.Command) error {
	app, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	runs, err := app.orch.Runs()
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Fprintln(cmd.Root().Writer, r)
	}
	return nil
}

func historyAction(ctx context.Context, cmd *cli.Command) error {
	app, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	recs, err := app.orch.History(ctx, int(cmd.Int("limit")))
	if err != nil {
		return err
	}
	printHistory(cmd.Root().Writer, recs)
	return nil
}
