package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/asakaida/relcalc/internal/infrastructure/config"
	"github.com/asakaida/relcalc/internal/infrastructure/database"
	"github.com/asakaida/relcalc/internal/infrastructure/logging"
	"github.com/asakaida/relcalc/internal/repositories/sqlstore"
	"github.com/asakaida/relcalc/internal/services"
)

var (
	envFlag string
	cfg     *config.Config
	db      *database.Database
	log     *zap.SugaredLogger
)

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Database migration tool for the relationship calculator",
	Long: `Database migration tool for the relationship calculator.
Manages PostgreSQL and SQLite schema migrations using golang-migrate and
loads the reference data files into the catalog tables.`,
	PersistentPreRunE: setupDatabase,
	PersistentPostRun: closeDatabase,
	SilenceUsage:      true,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Long:  `Apply all pending migrations to the database.`,
	RunE:  runUp,
}

var downCmd = &cobra.Command{
	Use:   "down [steps]",
	Short: "Rollback migrations",
	Long:  `Rollback the specified number of migrations (default: 1).`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDown,
}

var gotoCmd = &cobra.Command{
	Use:   "goto <version>",
	Short: "Migrate to a specific version",
	Long:  `Migrate to a specific version number.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runGoto,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show current migration version",
	Long:  `Display the current migration version of the database.`,
	RunE:  runVersion,
}

var forceCmd = &cobra.Command{
	Use:   "force <version>",
	Short: "Force set migration version (use with caution)",
	Long:  `Force set the migration version without running migrations. Use with caution.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runForce,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the reference data files into the catalog",
	Long: `Validate the relationship, distribution, probability and X-inheritance
files and replace the catalog tables with their contents in one transaction.`,
	RunE: runSeed,
}

var checkDeployCmd = &cobra.Command{
	Use:   "check-deploy",
	Short: "Validate the deployment descriptor, .env.example and launcher",
	Long:  `Check deploy/render.yaml, .env.example and start_dev.sh for consistency.`,
	// No database needed
	PersistentPreRunE: setupLogger,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {},
	RunE:              runCheckDeploy,
}

func init() {
	// Add global --env flag to all commands
	rootCmd.PersistentFlags().StringVarP(&envFlag, "env", "e", "dev", "Environment to use (dev, test, prod)")

	// Add subcommands
	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(downCmd)
	rootCmd.AddCommand(gotoCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(forceCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(checkDeployCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogger(cmd *cobra.Command, args []string) error {
	logger, err := logging.New("INFO", "")
	if err != nil {
		return err
	}
	log = logger.Sugar()
	return nil
}

func setupDatabase(cmd *cobra.Command, args []string) error {
	if err := config.InitConfig(envFlag); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, "")
	if err != nil {
		return err
	}
	log = logger.Sugar()
	log.Infof("Using environment: %s", envFlag)

	db, err = database.Open(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Infof("Connected to %s database", db.Dialect())
	return nil
}

func closeDatabase(cmd *cobra.Command, args []string) {
	if db != nil {
		if err := db.Close(); err != nil {
			log.Warnf("Error closing database connection: %v", err)
		}
	}
	if log != nil {
		_ = log.Sync()
	}
}

func runUp(cmd *cobra.Command, args []string) error {
	m, err := db.NewMigrate()
	if err != nil {
		return err
	}

	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Info("No migrations to apply")
	case err != nil:
		return fmt.Errorf("migration up failed: %w", err)
	default:
		log.Info("Migration up completed successfully")
	}
	return nil
}

func runDown(cmd *cobra.Command, args []string) error {
	steps := 1 // Default: rollback 1 migration
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("steps must be a positive integer, got %q", args[0])
		}
		steps = n
	}

	m, err := db.NewMigrate()
	if err != nil {
		return err
	}

	err = m.Steps(-steps)
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Info("No migrations to rollback")
	case err != nil:
		return fmt.Errorf("migration down failed: %w", err)
	default:
		log.Infof("Migration down completed successfully (rolled back %d migration(s))", steps)
	}
	return nil
}

func runGoto(cmd *cobra.Command, args []string) error {
	version, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid version %q", args[0])
	}

	m, err := db.NewMigrate()
	if err != nil {
		return err
	}

	err = m.Migrate(uint(version))
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Infof("Already at version %d", version)
	case err != nil:
		return fmt.Errorf("migration goto failed: %w", err)
	default:
		log.Infof("Migration goto %d completed successfully", version)
	}
	return nil
}

func runVersion(cmd *cobra.Command, args []string) error {
	m, err := db.NewMigrate()
	if err != nil {
		return err
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		log.Info("Current version: No migrations applied yet")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get version: %w", err)
	}

	if dirty {
		log.Infof("Current version: %d (dirty - migration may have failed)", version)
	} else {
		log.Infof("Current version: %d", version)
	}
	return nil
}

func runForce(cmd *cobra.Command, args []string) error {
	version, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid version %q", args[0])
	}

	m, err := db.NewMigrate()
	if err != nil {
		return err
	}

	if err := m.Force(version); err != nil {
		return fmt.Errorf("migration force failed: %w", err)
	}

	log.Infof("Migration forced to version %d", version)
	return nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	root, err := config.FindProjectRoot()
	if err != nil {
		if root, err = os.Getwd(); err != nil {
			return err
		}
	}

	files := services.DataFiles{
		Relationships: cfg.Data.RelationshipsFile,
		Distributions: cfg.Data.DistributionsFile,
		Probabilities: cfg.Data.ProbabilitiesFile,
		XInheritance:  cfg.Data.XInheritanceFile,
	}.Resolve(root)

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	seeder := services.NewSeeder(sqlstore.NewCatalogRepository(db.DB))
	catalog, err := seeder.Seed(ctx, files)
	if err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}

	log.Infof("Seeded %d relationships", len(catalog.Relationships()))
	return nil
}

func runCheckDeploy(cmd *cobra.Command, args []string) error {
	root, err := config.FindProjectRoot()
	if err != nil {
		if root, err = os.Getwd(); err != nil {
			return err
		}
	}

	if err := config.CheckDeployment(root); err != nil {
		return fmt.Errorf("deployment check failed: %w", err)
	}
	log.Info("Deployment descriptor, .env.example and launcher are consistent")
	return nil
}
