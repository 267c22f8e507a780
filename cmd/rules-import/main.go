// Command rules-import seeds assignment rules from a YAML file.
//
// Usage:
//
//	rules-import rules.yaml
//	rules-import --dry-run rules.yaml
package main

import (
	"context"
	"fmt"
	"os"

	"leadconsole_backend/internal/events"
	"leadconsole_backend/internal/leads/domain"
	"leadconsole_backend/internal/leads/repository"
	"leadconsole_backend/internal/leads/rules"
	"leadconsole_backend/platform/config"
	"leadconsole_backend/platform/db"
	"leadconsole_backend/platform/logger"

	"github.com/spf13/cobra"
)

var dryRun bool

var rootCmd = &cobra.Command{
	Use:          "rules-import <file.yaml>",
	Short:        "Import assignment rules from a YAML seed file",
	Long:         `Validates every rule in the file and creates them in a single transaction. A file with any invalid rule changes nothing.`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runImport,
}

func init() {
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse the file and print the rules without writing them")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runImport(cmd *cobra.Command, args []string) error {
	specs, err := readRuleFile(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if dryRun {
		for _, spec := range specs {
			fmt.Fprintf(out, "%-30s priority=%d category=%q status=%q counselor=%s\n",
				spec.Name, spec.Priority, spec.Category, spec.Status, spec.CounselorEmail)
		}
		fmt.Fprintf(out, "%d rules parsed, nothing written\n", len(specs))
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Env)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	bus := events.NewInMemoryBus(log)
	defer bus.Close()

	svc := rules.New(repository.New(pool), bus, log, cfg.GetBusinessLocation())
	result, err := svc.ImportRules(ctx, domain.SystemActor(), specs)
	if err != nil {
		return err
	}

	for _, rule := range result.Created {
		fmt.Fprintf(out, "created %s (%s) priority=%d\n", rule.Name, rule.ID, rule.Priority)
	}
	for _, warning := range result.Warnings {
		fmt.Fprintf(out, "warning: %s\n", warning)
	}
	log.Info("assignment rules imported", "created", len(result.Created), "warnings", len(result.Warnings))
	return nil
}
