package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dangerclosesec/orgmgr/internal/config"
	"github.com/dangerclosesec/orgmgr/internal/database"
	"github.com/dangerclosesec/orgmgr/internal/partition"
	"github.com/dangerclosesec/orgmgr/internal/repository"
	"github.com/dangerclosesec/orgmgr/internal/service"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

type options struct {
	dbConnString string
	verbose      bool
	timeout      time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:          "orgctl",
		Short:        "orgctl manages the organization master database",
		Long:         `orgctl prepares the master database and inspects or repairs per-organization partitions.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.dbConnString, "db", "d", "", "Database connection string (defaults to DB_* environment)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "Timeout for database operations")

	rootCmd.AddCommand(newInitCmd(opts))
	rootCmd.AddCommand(newPingCmd(opts))
	rootCmd.AddCommand(newPartitionCmd(opts))
	rootCmd.AddCommand(newReconcileCmd(opts))

	return rootCmd
}

func (o *options) dsn() string {
	if o.dbConnString != "" {
		return o.dbConnString
	}
	return database.DSN(config.Load())
}

func (o *options) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), o.timeout)
}

func (o *options) openGorm(ctx context.Context) (*gorm.DB, func(), error) {
	db, err := database.OpenDSN(ctx, o.dsn(), o.verbose)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("getting database instance: %w", err)
	}
	return db, func() { sqlDB.Close() }, nil
}

func newInitCmd(opts *options) *cobra.Command {
	var orgName string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the master database schema",
		Long: `Create or migrate the organizations, admins and audit_events tables.
With --org, also make sure that organization's partition exists.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()

			db, closeDB, err := opts.openGorm(ctx)
			if err != nil {
				return err
			}
			defer closeDB()

			if err := repository.AutoMigrate(db.WithContext(ctx)); err != nil {
				return fmt.Errorf("initializing schema: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema initialized successfully")

			if orgName == "" {
				return nil
			}

			name := partition.DeriveName(orgName)
			manager := partition.NewManager(db)
			exists, err := manager.Exists(ctx, name)
			if err != nil {
				return err
			}
			if exists {
				fmt.Fprintf(cmd.OutOrStdout(), "Partition %s already exists\n", name)
				return nil
			}
			if err := manager.Create(ctx, name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Partition %s created\n", name)
			return nil
		},
	}

	cmd.Flags().StringVar(&orgName, "org", "", "Organization whose partition should exist")
	return cmd
}

func newPingCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check connectivity to the master database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()

			db, err := sql.Open("postgres", opts.dsn())
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			start := time.Now()
			if err := db.PingContext(ctx); err != nil {
				return fmt.Errorf("pinging database: %w", err)
			}
			elapsed := time.Since(start)

			fmt.Fprintf(cmd.OutOrStdout(), "Database reachable (%s)\n", elapsed.Round(time.Millisecond))
			if opts.verbose {
				var version string
				if err := db.QueryRowContext(ctx, "SELECT version()").Scan(&version); err != nil {
					return fmt.Errorf("reading server version: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), version)
			}
			return nil
		},
	}
}

func newPartitionCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "partition",
		Short: "Inspect and manage organization partitions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "derive [organization name]",
		Short: "Print the partition name for an organization name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), partition.DeriveName(args[0]))
			return nil
		},
	})

	cmd.AddCommand(managerCmd(opts, "exists [partition]", "Report whether a partition exists", 1,
		func(ctx context.Context, m *partition.Manager, out io.Writer, args []string) error {
			exists, err := m.Exists(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(out, exists)
			return nil
		}))

	cmd.AddCommand(managerCmd(opts, "create [partition]", "Create an empty partition", 1,
		func(ctx context.Context, m *partition.Manager, out io.Writer, args []string) error {
			if err := m.Create(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(out, "Partition %s created\n", args[0])
			return nil
		}))

	cmd.AddCommand(managerCmd(opts, "drop [partition]", "Drop a partition and all of its documents", 1,
		func(ctx context.Context, m *partition.Manager, out io.Writer, args []string) error {
			if err := m.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(out, "Partition %s dropped\n", args[0])
			return nil
		}))

	cmd.AddCommand(managerCmd(opts, "rename [old] [new]", "Move every document of a partition into another", 2,
		func(ctx context.Context, m *partition.Manager, out io.Writer, args []string) error {
			if err := m.Rename(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(out, "Partition %s renamed to %s\n", args[0], args[1])
			return nil
		}))

	cmd.AddCommand(managerCmd(opts, "count [partition]", "Count the documents in a partition", 1,
		func(ctx context.Context, m *partition.Manager, out io.Writer, args []string) error {
			n, err := m.Count(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(out, n)
			return nil
		}))

	return cmd
}

// managerCmd builds a subcommand that runs fn against a connected partition
// manager.
func managerCmd(opts *options, use, short string, nargs int,
	fn func(ctx context.Context, m *partition.Manager, out io.Writer, args []string) error,
) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()

			db, closeDB, err := opts.openGorm(ctx)
			if err != nil {
				return err
			}
			defer closeDB()

			return fn(ctx, partition.NewManager(db), cmd.OutOrStdout(), args)
		},
	}
}

func newReconcileCmd(opts *options) *cobra.Command {
	var (
		dryRun      bool
		dropOrphans bool
		adminGrace  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Repair drift between the directory and the partitions",
		Long: `Recreate partitions that organizations point at but that no longer exist,
remove admins that never got linked to an organization, and report partitions
that no organization refers to. Orphan partitions are only dropped with
--drop-orphans, which must not be used while organizations are being created.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()

			db, closeDB, err := opts.openGorm(ctx)
			if err != nil {
				return err
			}
			defer closeDB()

			logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelInfo}))

			svc := service.NewReconciliationService(
				repository.NewOrganizationRepository(db),
				repository.NewAdminRepository(db),
				partition.NewManager(db),
				logger,
			)
			svc.SetDryRun(dryRun)
			svc.SetDropOrphans(dropOrphans)
			svc.SetAdminGrace(adminGrace)

			report, err := svc.Run(ctx)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print what would be done without making changes")
	cmd.Flags().BoolVar(&dropOrphans, "drop-orphans", false, "Drop partitions no organization refers to")
	cmd.Flags().DurationVar(&adminGrace, "admin-grace", 10*time.Minute, "Minimum age of an unlinked admin before it is removed")
	return cmd
}
