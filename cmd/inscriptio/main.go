// Command inscriptio is the operator CLI: spreadsheet exports, orphan sweeps,
// and proof verification against the live stores.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/nexusacademy/inscriptio/internal/blobstore"
	"github.com/nexusacademy/inscriptio/internal/config"
	"github.com/nexusacademy/inscriptio/internal/database"
	"github.com/nexusacademy/inscriptio/internal/export"
	"github.com/nexusacademy/inscriptio/internal/proofcheck"
	"github.com/nexusacademy/inscriptio/internal/repository"
	"github.com/nexusacademy/inscriptio/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "inscriptio: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inscriptio",
		Short: "Inscriptio operations CLI",
		Long: `The inscriptio CLI runs operator tasks against the live record and object
stores: exporting a cohort to a spreadsheet, sweeping orphaned proof files,
and verifying stored proofs are readable.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newExportCmd(),
		newCohortesCmd(),
		newSweepCmd(),
		newVerifyProofsCmd(),
	)
	return cmd
}

func newExportCmd() *cobra.Command {
	var cohorte string
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a cohort's submissions to an xlsx file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if cohorte == "" {
				return fmt.Errorf("--cohorte is required")
			}
			_, pool, repo, err := openRecords(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			engine := export.NewEngine(repo)
			data, err := engine.Excel(ctx, cohorte)
			if err != nil {
				return err
			}
			if out == "" {
				out = fmt.Sprintf("inscriptions_%s.xlsx", cohorte)
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Printf("wrote %s (%d bytes)\n", out, len(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&cohorte, "cohorte", "", "Cohort label to export")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output path (default inscriptions_<cohorte>.xlsx)")
	return cmd
}

func newCohortesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cohortes",
		Short: "List the known cohort labels",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, pool, repo, err := openRecords(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			labels, err := repo.DistinctCohortes(ctx)
			if err != nil {
				return err
			}
			for _, label := range labels {
				fmt.Println(label)
			}
			return nil
		},
	}
}

func newSweepCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Reconcile the proof bucket against the record store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, pool, repo, err := openRecords(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			store, err := openBucket(ctx, cfg)
			if err != nil {
				return err
			}
			if dryRun {
				objects, err := store.ListObjects(ctx)
				if err != nil {
					return err
				}
				referenced, err := repo.AllProofKeys(ctx)
				if err != nil {
					return err
				}
				for _, orphan := range worker.Orphans(objects, referenced) {
					fmt.Printf("orphan: %s (modified %s)\n", orphan.Key, orphan.LastModified.Format(time.RFC3339))
				}
				return nil
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
			processor := worker.NewProcessor(repo, store, cfg.SweepGrace, logger)
			removed, kept, err := processor.Sweep(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("removed %d orphan(s), %d still inside the grace window\n", removed, kept)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List orphans without deleting anything")
	return cmd
}

func newVerifyProofsCmd() *cobra.Command {
	var cohorte string
	cmd := &cobra.Command{
		Use:   "verify-proofs",
		Short: "Check that every stored proof file is readable",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, pool, repo, err := openRecords(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			store, err := openBucket(ctx, cfg)
			if err != nil {
				return err
			}
			subs, err := repo.List(ctx, cohorte, true)
			if err != nil {
				return err
			}
			var failures int
			for _, sub := range subs {
				if sub.ProofKey == nil {
					continue
				}
				data, err := store.Get(ctx, *sub.ProofKey)
				if err != nil {
					failures++
					fmt.Printf("FAIL %s (%s): %v\n", sub.Nom, *sub.ProofKey, err)
					continue
				}
				report, err := proofcheck.Inspect(data)
				if err != nil {
					failures++
					fmt.Printf("FAIL %s (%s): %v\n", sub.Nom, *sub.ProofKey, err)
					continue
				}
				if report.Pages > 0 {
					fmt.Printf("OK   %s (%s): %s, %d page(s)\n", sub.Nom, *sub.ProofKey, report.ContentType, report.Pages)
				} else {
					fmt.Printf("OK   %s (%s): %s\n", sub.Nom, *sub.ProofKey, report.ContentType)
				}
			}
			if failures > 0 {
				return fmt.Errorf("%d proof(s) failed verification", failures)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&cohorte, "cohorte", "", "Restrict to one cohort (default all)")
	return cmd
}

func openRecords(ctx context.Context) (*config.Config, *pgxpool.Pool, *repository.SubmissionRepository, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return cfg, pool, repository.NewSubmissionRepository(pool), nil
}

func openBucket(ctx context.Context, cfg *config.Config) (*blobstore.Store, error) {
	if !cfg.ObjectStoreConfigured() {
		return nil, fmt.Errorf("object store not configured; set S3_ENDPOINT")
	}
	store, err := blobstore.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}
