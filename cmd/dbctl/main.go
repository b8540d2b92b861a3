package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roivaz/prcohort/internal/config"
	"github.com/roivaz/prcohort/internal/db"
	dbmigrate "github.com/roivaz/prcohort/internal/db/migrate"
	"github.com/roivaz/prcohort/internal/db/migrations"
)

var rootCmd = &cobra.Command{
	Use:   "dbctl",
	Short: "Database schema management CLI",
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize migration tables and extensions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithDatabase(func(database *db.Database) error {
			manager, err := newManager(database)
			if err != nil {
				return err
			}
			return manager.Init(cmd.Context())
		})
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or rollback schema migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithDatabase(func(database *db.Database) error {
			manager, err := newManager(database)
			if err != nil {
				return err
			}
			return manager.Up(cmd.Context())
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		steps, _ := cmd.Flags().GetInt("steps")
		to, _ := cmd.Flags().GetString("to")

		return runWithDatabase(func(database *db.Database) error {
			manager, err := newManager(database)
			if err != nil {
				return err
			}
			if to != "" {
				return manager.RollbackTo(cmd.Context(), to)
			}
			return manager.Rollback(cmd.Context(), steps)
		})
	},
}

var statusCmd = &cobra.Command{
	Use:           "status",
	Short:         "Show applied and pending migrations",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithDatabase(func(database *db.Database) error {
			manager, err := newManager(database)
			if err != nil {
				return err
			}
			status, err := manager.Status(cmd.Context())
			if err != nil {
				return err
			}
			for _, m := range status {
				state := "pending"
				if m.IsApplied() {
					state = "applied"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s_%s\t%s\n", m.Name, m.Comment, state)
			}
			return nil
		})
	},
}

var verifyCmd = &cobra.Command{
	Use:           "verify",
	Short:         "Ensure database is on the latest schema version",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithDatabase(func(database *db.Database) error {
			fsys, err := migrationsFS()
			if err != nil {
				return err
			}
			if err := dbmigrate.EnsureCurrent(cmd.Context(), database.Bun(), fsys, false); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is current")
			return nil
		})
	},
}

var recreateCmd = &cobra.Command{
	Use:   "recreate <scope>",
	Short: "Drop and recreate tables for a scope (destructive)",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return errors.New("scope must be exactly one of: all, records, pairs")
		}
		if _, ok := scopeTables[args[0]]; !ok {
			return errors.New("scope must be one of: all, records, pairs")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.ToLower(os.Getenv("DB_ALLOW_DESTRUCTIVE")) != "yes" {
			return errors.New("DB_ALLOW_DESTRUCTIVE=yes must be set for recreate")
		}
		return runWithDatabase(func(database *db.Database) error {
			manager, err := newManager(database)
			if err != nil {
				return err
			}
			return manager.Recreate(cmd.Context(), scopeTables[args[0]]...)
		})
	},
}

var pingCmd = &cobra.Command{
	Use:           "ping",
	Short:         "Check that the database is reachable",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithDatabase(func(database *db.Database) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			start := time.Now()
			if err := database.Ping(ctx); err != nil {
				return fmt.Errorf("database connection failed: %w", err)
			}
			var version string
			if err := database.Bun().NewSelect().ColumnExpr("version()").Scan(ctx, &version); err != nil {
				return fmt.Errorf("query server version: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "connected in %s\n%s\n", time.Since(start).Round(time.Millisecond), version)
			return nil
		})
	},
}

// scopeTables lists the tables dropped by each recreate scope.
var scopeTables = map[string][]string{
	"all":     {"matched_pairs", "pr_records"},
	"records": {"pr_records"},
	"pairs":   {"matched_pairs"},
}

func main() {
	config.Init(rootCmd)

	rootCmd.PersistentFlags().String("dsn", "", "PostgreSQL DSN (overrides POSTGRES_URL)")
	rootCmd.PersistentFlags().String("migrations", "", "Migrations directory (defaults to the embedded migrations)")
	_ = viper.BindPFlag(config.KeyPostgresURL, rootCmd.PersistentFlags().Lookup("dsn"))
	_ = viper.BindPFlag("db_migrations_dir", rootCmd.PersistentFlags().Lookup("migrations"))

	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)
	rootCmd.AddCommand(initCmd, migrateCmd, statusCmd, verifyCmd, recreateCmd, pingCmd)
	_ = migrateDownCmd.Flags().Int("steps", 1, "Number of migration groups to roll back (0 = all)")
	_ = migrateDownCmd.Flags().String("to", "", "Roll back migrations newer than the specified one")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "dbctl: %v\n", err)
		os.Exit(1)
	}
}

func runWithDatabase(fn func(*db.Database) error) error {
	dsn := viper.GetString(config.KeyPostgresURL)
	if dsn == "" {
		dsn = config.PostgresURL()
	}
	if dsn == "" {
		return errors.New("postgres DSN must be provided via flag or environment")
	}
	database, err := db.NewDatabase(db.Config{DSN: dsn, Debug: config.DBDebug()})
	if err != nil {
		return err
	}
	defer database.Close()
	return fn(database)
}

func newManager(database *db.Database) (*dbmigrate.Manager, error) {
	fsys, err := migrationsFS()
	if err != nil {
		return nil, err
	}
	return dbmigrate.NewManager(database.Bun(), fsys)
}

// migrationsFS returns the --migrations directory when given, the embedded
// migrations otherwise.
func migrationsFS() (fs.FS, error) {
	dir := viper.GetString("db_migrations_dir")
	if dir == "" {
		return migrations.FS, nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve migrations dir: %w", err)
	}
	return os.DirFS(abs), nil
}
