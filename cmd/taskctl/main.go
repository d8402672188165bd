// taskctl drives the audit task API from a terminal. Writes are retried on
// transient failures; when a write cannot be confirmed the last known task
// state is printed and the command exits with status 3.
//
//	taskctl status 42 --status Pending --remarks "waiting on client" --version 3
//	taskctl review 42 --decision rejected --remarks "figures do not tie out"
//	taskctl reassign 42 --assignee 7 --due-date 2024-12-01
//	taskctl deactivate-customer 9 --force
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"

	"github.com/prosync/audit-task-api/internal/client"
	"github.com/prosync/audit-task-api/internal/logger"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

const (
	exitFailure     = 1
	exitPendingSync = 3
)

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func (e *exitError) ExitCode() int { return e.code }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		os.Exit(exitFailure)
	}
}

// command is a subcommand. bind registers its flags and returns the action.
type command struct {
	name  string
	usage string
	bind  func(fs *pflag.FlagSet) func(ctx context.Context, c *client.Client, id uint64, fs *pflag.FlagSet) (any, error)
}

var commands = []command{
	{
		name:  "get",
		usage: "get <task-id>",
		bind: func(fs *pflag.FlagSet) func(context.Context, *client.Client, uint64, *pflag.FlagSet) (any, error) {
			return func(ctx context.Context, c *client.Client, id uint64, _ *pflag.FlagSet) (any, error) {
				return c.GetTask(ctx, id)
			}
		},
	},
	{
		name:  "status",
		usage: "status <task-id> --status <Yet to Start|WIP|Pending|Completed> [--remarks text] [--version n]",
		bind: func(fs *pflag.FlagSet) func(context.Context, *client.Client, uint64, *pflag.FlagSet) (any, error) {
			status := fs.String("status", "", "target task status")
			remarks := fs.String("remarks", "", "remarks, required for Pending")
			return func(ctx context.Context, c *client.Client, id uint64, fs *pflag.FlagSet) (any, error) {
				if *status == "" {
					return nil, errors.New("--status is required")
				}
				return c.UpdateStatus(ctx, id, *status, *remarks, versionFlag(fs))
			}
		},
	},
	{
		name:  "review",
		usage: "review <task-id> --decision <under_review|rejected|accepted> [--remarks text] [--version n]",
		bind: func(fs *pflag.FlagSet) func(context.Context, *client.Client, uint64, *pflag.FlagSet) (any, error) {
			decision := fs.String("decision", "", "reviewer status")
			remarks := fs.String("remarks", "", "review comments, required for rejected")
			return func(ctx context.Context, c *client.Client, id uint64, fs *pflag.FlagSet) (any, error) {
				if *decision == "" {
					return nil, errors.New("--decision is required")
				}
				return c.SetReviewStatus(ctx, id, *decision, *remarks, versionFlag(fs))
			}
		},
	},
	{
		name:  "reassign",
		usage: "reassign <task-id> --assignee <actor-id> [--due-date YYYY-MM-DD] [--status s] [--version n]",
		bind: func(fs *pflag.FlagSet) func(context.Context, *client.Client, uint64, *pflag.FlagSet) (any, error) {
			assignee := fs.Uint64("assignee", 0, "new assignee actor id")
			dueDate := fs.String("due-date", "", "new due date")
			status := fs.String("status", "", "status to set alongside the reassignment")
			return func(ctx context.Context, c *client.Client, id uint64, fs *pflag.FlagSet) (any, error) {
				if *assignee == 0 {
					return nil, errors.New("--assignee is required")
				}
				return c.Reassign(ctx, id, client.ReassignInput{
					AssigneeID: *assignee,
					DueDate:    *dueDate,
					Status:     *status,
					Version:    versionFlag(fs),
				})
			}
		},
	},
	{
		name:  "deactivate-actor",
		usage: "deactivate-actor <actor-id>",
		bind: func(fs *pflag.FlagSet) func(context.Context, *client.Client, uint64, *pflag.FlagSet) (any, error) {
			return func(ctx context.Context, c *client.Client, id uint64, _ *pflag.FlagSet) (any, error) {
				return c.DeactivateActor(ctx, id)
			}
		},
	},
	{
		name:  "deactivate-customer",
		usage: "deactivate-customer <customer-id> [--force]",
		bind: func(fs *pflag.FlagSet) func(context.Context, *client.Client, uint64, *pflag.FlagSet) (any, error) {
			force := fs.Bool("force", false, "deactivate even with open tasks")
			return func(ctx context.Context, c *client.Client, id uint64, _ *pflag.FlagSet) (any, error) {
				return c.DeactivateCustomer(ctx, id, *force)
			}
		},
	},
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
		printUsage(stderr)
		return pflag.ErrHelp
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == args[0] {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		printUsage(stderr)
		return fmt.Errorf("unknown command %q", args[0])
	}

	fs := pflag.NewFlagSet("taskctl "+cmd.name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	server := fs.String("server", envOr("TASKCTL_SERVER", "http://localhost:8080"), "API base URL")
	token := fs.String("token", os.Getenv("TASKCTL_TOKEN"), "bearer token")
	retries := fs.Uint64("retries", 4, "retries for transient failures")
	verbose := fs.BoolP("verbose", "v", false, "log retries and reconciliation")
	fs.Int("version", 0, "expected task version")
	exec := cmd.bind(fs)

	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: taskctl %s", cmd.usage)
	}
	id, err := strconv.ParseUint(fs.Arg(0), 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid id %q", fs.Arg(0))
	}

	log := zap.NewNop()
	if *verbose {
		if log, err = logger.New(true); err != nil {
			return err
		}
		defer log.Sync()
	}

	c := client.New(*server,
		client.WithToken(*token),
		client.WithMaxRetries(*retries),
		client.WithLogger(log),
	)

	result, err := exec(ctx, c, id, fs)
	if err != nil {
		var syncErr *client.SyncError
		if errors.As(err, &syncErr) {
			if syncErr.LastKnown != nil {
				fmt.Fprintln(stderr, "change not confirmed; last known server state:")
				if encErr := writeJSON(stdout, syncErr.LastKnown); encErr != nil {
					return encErr
				}
			}
			return &exitError{code: exitPendingSync, err: err}
		}
		return err
	}

	if tr, ok := result.(*client.TaskResult); ok {
		fmt.Fprintf(stderr, "outcome: %s\n", tr.Outcome)
		return writeJSON(stdout, tr.Task)
	}
	return writeJSON(stdout, result)
}

func versionFlag(fs *pflag.FlagSet) *int {
	if !fs.Changed("version") {
		return nil
	}
	v, _ := fs.GetInt("version")
	return &v
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: taskctl <command> <id> [flags]")
	fmt.Fprintln(w)
	for _, c := range commands {
		fmt.Fprintf(w, "  %s\n", c.usage)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "global flags: --server, --token, --retries, --verbose")
}
