// Package reanalyze implements the batch re-analysis command.
package reanalyze

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/huelab/huelab-go/internal/classifier"
	"github.com/huelab/huelab-go/internal/conf"
	"github.com/huelab/huelab-go/internal/datastore"
	"github.com/huelab/huelab-go/internal/labeling"
	"github.com/huelab/huelab-go/internal/reanalysis"
)

// Command creates the reanalyze command.
func Command(settings *conf.Settings) *cobra.Command {
	var policy string
	var apply bool

	cmd := &cobra.Command{
		Use:   "reanalyze",
		Short: "Re-run the classifier over confirmed records",
		Long: "Re-classify human-confirmed records one by one and report whether " +
			"model accuracy improved or regressed against the confirmed labels.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReanalysis(settings, reanalysis.CohortPolicy(policy), apply)
		},
	}

	cmd.Flags().StringVar(&policy, "cohort", string(reanalysis.CohortAllConfirmed), "Cohort policy: all_confirmed, previously_wrong or with_features")
	cmd.Flags().BoolVar(&apply, "apply", false, "Write fresh predictions back to the records")
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		fmt.Printf("error binding flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func runReanalysis(settings *conf.Settings, policy reanalysis.CohortPolicy, apply bool) error {
	store := datastore.New(settings)
	if store == nil {
		return fmt.Errorf("no record store is enabled in the configuration")
	}
	if err := store.Open(); err != nil {
		return fmt.Errorf("failed to open record store: %w", err)
	}
	defer func() { _ = store.Close() }()

	clf, err := classifier.NewHTTPClient(settings)
	if err != nil {
		return fmt.Errorf("failed to create classifier client: %w", err)
	}

	// with_features reaches beyond confirmed records; unconfirmed items are
	// re-classified for inspection and reported as skipped.
	fetch := store.GetConfirmedRecords
	if policy == reanalysis.CohortWithFeatures {
		fetch = store.GetRecordsWithFeatures
	}
	records, err := fetch()
	if err != nil {
		return fmt.Errorf("failed to load records: %w", err)
	}
	pointers := make([]*labeling.Record, 0, len(records))
	for i := range records {
		pointers = append(pointers, &records[i])
	}
	cohort, err := reanalysis.SelectCohort(policy, pointers)
	if err != nil {
		return err
	}
	if len(cohort) == 0 {
		fmt.Println("No records match the selected cohort.")
		return nil
	}
	fmt.Printf("Re-analyzing %d records (cohort %s)\n", len(cohort), policy)

	// Ctrl-C stops the run between items; processed results are kept.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine := reanalysis.NewEngine(clf)
	report, runErr := engine.Run(ctx, cohort, func(p reanalysis.Progress) {
		fmt.Printf("[%d/%d] %s: %s\n", p.Completed, p.Total, p.Last.RecordID, p.Last.Outcome)
	})
	if report == nil {
		return runErr
	}

	if apply {
		applied := 0
		for i := range report.Items {
			item := &report.Items[i]
			if item.Prediction == nil {
				continue
			}
			record := cohort[i]
			prediction := labeling.Prediction{
				Label:      item.Prediction.Label,
				Confidence: item.Prediction.Confidence,
				Features:   item.Prediction.Features,
			}
			for _, alt := range item.Prediction.Alternatives {
				prediction.Alternatives = append(prediction.Alternatives, labeling.AlternativePrediction{
					Label:      alt.Label,
					Confidence: alt.Confidence,
				})
			}
			if err := labeling.SubmitPrediction(record, prediction, settings.Review.ReviewThreshold); err != nil {
				fmt.Printf("apply failed for %s: %v\n", record.ID, err)
				continue
			}
			if err := store.Save(record); err != nil {
				fmt.Printf("save failed for %s: %v\n", record.ID, err)
				continue
			}
			applied++
		}
		fmt.Printf("Applied %d fresh predictions\n", applied)
	}

	s := report.Summary
	fmt.Println()
	fmt.Printf("Evaluated:  %d (skipped %d, errors %d)\n", s.Evaluated, s.Skipped, s.Errors)
	fmt.Printf("Improved:   %d\n", s.Improved)
	fmt.Printf("Regressed:  %d\n", s.Regressed)
	fmt.Printf("Unchanged:  %d\n", s.Unchanged)
	fmt.Printf("Accuracy:   %.1f%% -> %.1f%% (%+.1f)\n", s.OriginalAccuracy, s.NewAccuracy, s.AccuracyChange)
	fmt.Printf("Confidence: %+.1f average change\n", s.AvgConfidenceChange)

	return runErr
}
