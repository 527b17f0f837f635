package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/assistly/llm-jobs/config"
	"github.com/assistly/llm-jobs/internal/bootstrap"
	"github.com/assistly/llm-jobs/internal/data"
	"github.com/assistly/llm-jobs/internal/devseed"
	"github.com/assistly/llm-jobs/internal/service"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
}

const defaultCommandTimeout = 2 * time.Minute

func main() {
	logger := bootstrap.InitLogger()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmdName)
		printUsage()
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Config: cfg,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"migrate": {
			name:        "migrate",
			description: "Apply the job store schema (Postgres driver only)",
			run:         runMigrate,
		},
		"sweep": {
			name:        "sweep",
			description: "Run one retention sweep and report pruned records",
			run:         runSweep,
		},
		"job": {
			name:        "job",
			description: "Inspect a tracked job record",
			run:         runJobInspect,
		},
		"purge-job": {
			name:        "purge-job",
			description: "Delete a job record regardless of retention",
			run:         runPurgeJob,
		},
		"seed": {
			name:        "seed",
			description: "Insert sample job records for development",
			run:         runSeed,
		},
	}
}

func runSeed(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	store, cleanup, err := openJobStore(cmdCtx)
	if err != nil {
		return err
	}
	defer cleanup()

	return devseed.Run(ctx, store, cmdCtx.Logger)
}

func printUsage() {
	fmt.Fprintf(os.Stdout, "Usage: llmjobs-admin <command> [flags]\n\n")
	fmt.Fprintf(os.Stdout, "Available commands:\n")
	for _, c := range commands() {
		fmt.Fprintf(os.Stdout, "  %-12s %s\n", c.name, c.description)
	}
}

func runMigrate(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	timeout := fs.Duration("timeout", 5*time.Minute, "Maximum duration to wait for migrations to complete")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", cerr)
		}
	}()

	cmdCtx.Logger.Info("running job store migrations")
	if err := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); err != nil {
		return err
	}
	cmdCtx.Logger.Info("migrations completed successfully")
	return nil
}

func runSweep(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	store, cleanup, err := openJobStore(cmdCtx)
	if err != nil {
		return err
	}
	defer cleanup()

	sweeper, err := service.NewSweeperService(service.SweeperServiceOptions{
		Store:  store,
		Config: cmdCtx.Config.Sweeper,
		Logger: cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("wire sweeper: %w", err)
	}

	pruned, err := sweeper.RunOnce(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Pruned %d expired job record(s)\n", pruned)
	return nil
}

func runJobInspect(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("job", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	jobID := fs.String("id", "", "Job ID to inspect (required)")
	rawJSON := fs.Bool("json", false, "Print the full record as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*jobID) == "" {
		return errors.New("--id is required")
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	store, cleanup, err := openJobStore(cmdCtx)
	if err != nil {
		return err
	}
	defer cleanup()

	rec, err := store.Get(ctx, *jobID)
	if err != nil {
		if errors.Is(err, data.ErrJobNotFound) {
			fmt.Fprintf(os.Stdout, "No record found for job %s\n", *jobID)
			return nil
		}
		return err
	}

	if *rawJSON {
		payload, marshalErr := json.MarshalIndent(rec, "", "  ")
		if marshalErr != nil {
			return fmt.Errorf("encode record: %w", marshalErr)
		}
		fmt.Fprintf(os.Stdout, "%s\n", payload)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Field\tValue\n")
	fmt.Fprintf(w, "ID\t%s\n", rec.ID)
	fmt.Fprintf(w, "Type\t%s\n", rec.Type)
	fmt.Fprintf(w, "Status\t%s\n", rec.Status)
	fmt.Fprintf(w, "Created\t%s\n", rec.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Updated\t%s\n", rec.UpdatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Expires\t%s\n", rec.ExpiresAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Webhooks Seen\t%d\n", len(rec.ProcessedWebhookIDs))
	if rec.Error != nil {
		fmt.Fprintf(w, "Error\t%s: %s\n", rec.Error.Code, rec.Error.Message)
	}
	return w.Flush()
}

func runPurgeJob(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("purge-job", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	jobID := fs.String("id", "", "Job ID to delete (required)")
	yes := fs.Bool("yes", false, "Skip confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*jobID) == "" {
		return errors.New("--id is required")
	}

	if !*yes {
		fmt.Fprintf(os.Stderr, "Type %q to confirm deletion or press enter to abort: ", *jobID)
		var resp string
		if _, scanErr := fmt.Fscanln(os.Stdin, &resp); scanErr != nil || strings.TrimSpace(resp) != *jobID {
			return errors.New("aborted by user")
		}
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	store, cleanup, err := openJobStore(cmdCtx)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := store.Delete(ctx, *jobID); err != nil {
		return err
	}

	cmdCtx.Logger.Info("job record deleted", "job_id", *jobID)
	return nil
}
