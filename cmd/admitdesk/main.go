// Command admitdesk runs the admissions CRM service.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/admitdesk/admitdesk/pkg/config"
	"github.com/admitdesk/admitdesk/pkg/crm/seed"
	"github.com/admitdesk/admitdesk/pkg/crm/students"
	"github.com/admitdesk/admitdesk/pkg/crm/team"
	"github.com/admitdesk/admitdesk/pkg/observability/logger"
	"github.com/admitdesk/admitdesk/pkg/observability/metrics"
	"github.com/admitdesk/admitdesk/pkg/repository/document"
	"github.com/admitdesk/admitdesk/pkg/security"
	"github.com/admitdesk/admitdesk/pkg/server"
	mongostore "github.com/admitdesk/admitdesk/pkg/store/mongodb"
	"github.com/admitdesk/admitdesk/pkg/version"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "admitdesk",
		Short:         "Admissions CRM service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to config file")

	root.AddCommand(newServeCmd(&configFile))
	root.AddCommand(newSeedCmd(&configFile))
	root.AddCommand(newVersionCmd())
	return root
}

func newServeCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewLoader(*configFile).Load()
			if err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log.Info("starting", "version", version.Current(cfg.Service.Name).String())

			adapter, err := connect(cfg, log)
			if err != nil {
				return err
			}
			defer adapter.Close()

			if err := adapter.EnsureIndexes(ctx, indexSpecs()); err != nil {
				return fmt.Errorf("ensure indexes: %w", err)
			}

			mongoExec, err := document.NewMongoExecutor(adapter)
			if err != nil {
				return err
			}
			reg := metrics.NewRegistry()
			exec := document.Instrument(mongoExec, func(collection, operation string, err error) {
				outcome := "ok"
				if err != nil {
					outcome = "error"
				}
				reg.RecordStoreOperation(collection, operation, outcome)
			})
			srv := server.New(server.Options{
				Config:   cfg,
				Students: students.NewService(exec, log),
				Team:     team.NewService(exec, log),
				Health:   adapter,
				Logger:   log,
				Metrics:  reg,
			})
			return srv.Run(ctx)
		},
	}
}

func newSeedCmd(configFile *string) *cobra.Command {
	var profilePath string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the store with demo data",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewLoader(*configFile).Load()
			if err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer log.Sync()

			profile := seed.DefaultProfile()
			if profilePath != "" {
				if err := security.ValidateFilePath(profilePath, ""); err != nil {
					return fmt.Errorf("seed profile: %w", err)
				}
				profile, err = seed.LoadProfile(profilePath)
				if err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var exec document.Executor
			if dryRun {
				log.Info("dry run, writing to in-memory store")
				exec = document.NewMemoryExecutor()
			} else {
				adapter, err := connect(cfg, log)
				if err != nil {
					return err
				}
				defer adapter.Close()
				exec, err = document.NewMongoExecutor(adapter)
				if err != nil {
					return err
				}
			}

			seeder := seed.New(
				students.NewService(exec, log),
				team.NewService(exec, log),
				log,
			)
			sum, err := seeder.Run(ctx, profile)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d students, %d members, %d tasks\n",
				sum.Students, sum.Members, sum.Tasks)
			return nil
		},
	}
	cmd.Flags().StringVar(&profilePath, "profile", "", "YAML seed profile")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "generate without writing to MongoDB")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Current("admitdesk").String())
		},
	}
}

func newLogger(cfg *config.Config) (*logger.ZapLogger, error) {
	level, err := logger.ParseLevel(cfg.Logger.Level)
	if err != nil {
		return nil, err
	}
	format, err := logger.ParseFormat(cfg.Logger.Format)
	if err != nil {
		return nil, err
	}
	return logger.NewZapLogger(logger.Config{Level: level, Format: format})
}

func connect(cfg *config.Config, log logger.Logger) (*mongostore.Adapter, error) {
	adapter, err := mongostore.NewAdapter(mongostore.Config{
		URL:              cfg.MongoDB.URL,
		Database:         cfg.MongoDB.Database,
		ConnectTimeout:   cfg.MongoDB.Timeout,
		OperationTimeout: cfg.MongoDB.Timeout,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	return adapter, nil
}

// indexSpecs lists the indexes the directory queries and task filters rely
// on. Single-field prefix queries ride the per-field indexes; the keyset
// sort always includes _id as tie break, which Mongo serves from the same
// index scan.
func indexSpecs() []mongostore.IndexSpec {
	return []mongostore.IndexSpec{
		{Collection: students.CollectionStudents, Keys: []mongostore.IndexKey{{Field: "lastActive", Desc: true}}},
		{Collection: students.CollectionStudents, Keys: []mongostore.IndexKey{{Field: "name_lc"}}},
		{Collection: students.CollectionStudents, Keys: []mongostore.IndexKey{{Field: "email_lc"}}},
		{Collection: students.CollectionStudents, Keys: []mongostore.IndexKey{{Field: "status"}, {Field: "lastActive", Desc: true}}},
		{Collection: students.CollectionNotes, Keys: []mongostore.IndexKey{{Field: "studentId"}, {Field: "createdAt", Desc: true}}},
		{Collection: students.CollectionCommunications, Keys: []mongostore.IndexKey{{Field: "studentId"}, {Field: "createdAt", Desc: true}}},
		{Collection: students.CollectionInteractions, Keys: []mongostore.IndexKey{{Field: "studentId"}, {Field: "createdAt", Desc: true}}},
		{Collection: team.CollectionMembers, Keys: []mongostore.IndexKey{{Field: "name"}}},
		{Collection: team.CollectionTasks, Keys: []mongostore.IndexKey{{Field: "dueAt"}}},
		{Collection: team.CollectionTasks, Keys: []mongostore.IndexKey{{Field: "assigneesIds"}}},
		{Collection: team.CollectionTasks, Keys: []mongostore.IndexKey{{Field: "team"}, {Field: "status"}}},
	}
}
