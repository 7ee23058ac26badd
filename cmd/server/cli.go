package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ibras0696/m-django-work/internal/config"
	"github.com/ibras0696/m-django-work/internal/platform/logger"
	"github.com/ibras0696/m-django-work/internal/platform/postgres"
)

// cliOptions holds flags shared by every command.
type cliOptions struct {
	configFile string
}

func newRootCommand() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:          "taskapi",
		Short:        "Task backend with deadline notifications",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "",
		"config file path (default: ./config.yaml when present)")

	root.AddCommand(
		newServeCommand(opts),
		newMigrateCommand(opts),
		newSweepCommand(opts),
		newConfigCommand(opts),
		newJobsCommand(opts),
		newUserCommand(opts),
	)
	return root
}

// load reads the configuration and sets up logging for one command run.
func (o *cliOptions) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadFile(o.configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}
	return cfg, log, nil
}

// buildApp loads configuration, opens the database and wires the application.
func (o *cliOptions) buildApp(ctx context.Context) (*application, error) {
	cfg, log, err := o.load()
	if err != nil {
		return nil, err
	}
	db, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	app, err := newApplication(cfg, log, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return app, nil
}

func newServeCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the notification executor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := opts.buildApp(ctx)
			if err != nil {
				return err
			}
			return app.Run(ctx)
		},
	}
}

func newMigrateCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|reset|status|version]",
		Short:     "Apply or inspect database migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: postgres.MigrationCommands,
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "up"
			if len(args) == 1 {
				command = args[0]
			}

			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			db, err := openDatabase(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer db.Close()

			return postgres.Migrate(cmd.Context(), db, command, log)
		},
	}
}

func newSweepCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Re-submit lost notifications once and report handle invariant violations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := opts.buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.cleanup()

			report, err := app.sweeper.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			return writeYAML(cmd.OutOrStdout(), report)
		},
	}
}

func newConfigCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets masked",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFile(opts.configFile)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return writeYAML(cmd.OutOrStdout(), cfg.Redacted())
		},
	}
}

// jobView is the printable form of a notification job.
type jobView struct {
	ID        string    `yaml:"id"`
	TaskID    string    `yaml:"task_id"`
	Status    string    `yaml:"status"`
	FireAt    time.Time `yaml:"fire_at"`
	Attempts  int       `yaml:"attempts"`
	LastError string    `yaml:"last_error,omitempty"`
	Payload   string    `yaml:"payload"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

type statusCount struct {
	Status string `yaml:"status"`
	Count  int    `yaml:"count"`
}

func newJobsCommand(opts *cliOptions) *cobra.Command {
	jobs := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect notification jobs",
	}

	jobs.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Count notification jobs per status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := opts.buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.cleanup()

			counts, err := app.jobStore.CountByStatus(cmd.Context())
			if err != nil {
				return err
			}
			out := make([]statusCount, 0, len(counts))
			for status, n := range counts {
				out = append(out, statusCount{Status: string(status), Count: n})
			}
			sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })
			return writeYAML(cmd.OutOrStdout(), out)
		},
	})

	jobs.AddCommand(&cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one notification job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.cleanup()

			job, err := app.jobStore.GetJob(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeYAML(cmd.OutOrStdout(), jobView{
				ID:        job.ID,
				TaskID:    job.TaskID.String(),
				Status:    string(job.Status),
				FireAt:    job.FireAt,
				Attempts:  job.Attempts,
				LastError: job.LastError,
				Payload:   string(job.Payload),
				UpdatedAt: job.UpdatedAt,
			})
		},
	})
	return jobs
}

func newUserCommand(opts *cliOptions) *cobra.Command {
	users := &cobra.Command{
		Use:   "user",
		Short: "Manage password accounts",
	}

	var email, password string
	create := &cobra.Command{
		Use:   "create <username>",
		Short: "Create a password account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("TASKAPI_NEW_USER_PASSWORD")
			}
			app, err := opts.buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.cleanup()

			user, err := app.accountService.CreateUser(cmd.Context(), args[0], email, password)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "created user %s (id %s)\n", user.Username, user.ID)
			return err
		},
	}
	create.Flags().StringVar(&email, "email", "", "email address")
	create.Flags().StringVar(&password, "password", "",
		"password; read from TASKAPI_NEW_USER_PASSWORD when omitted")
	users.AddCommand(create)
	return users
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return enc.Close()
}
