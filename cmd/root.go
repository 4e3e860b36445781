package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/huelab/huelab-go/cmd/catalog"
	"github.com/huelab/huelab-go/cmd/reanalyze"
	"github.com/huelab/huelab-go/cmd/serve"
	"github.com/huelab/huelab-go/internal/conf"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "huelab",
		Short: "HueLab color analysis labeling service",
	}

	setupFlags(rootCmd, settings)

	rootCmd.AddCommand(
		serve.Command(settings),
		reanalyze.Command(settings),
		catalog.Command(settings),
	)

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Classifier.Endpoint, "classifier", viper.GetString("classifier.endpoint"), "URL of the classification service")
	rootCmd.PersistentFlags().Float64Var(&settings.Review.ReviewThreshold, "reviewthreshold", viper.GetFloat64("review.reviewthreshold"), "Confidence below which predictions need review, 0-100")
	rootCmd.PersistentFlags().Float64Var(&settings.Review.AutoConfirmThreshold, "autoconfirmthreshold", viper.GetFloat64("review.autoconfirmthreshold"), "Confidence at or above which records may be auto-confirmed, 0-100")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Printf("error binding flags: %v\n", err)
	}
}
