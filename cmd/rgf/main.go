// Command rgf trains regularized-greedy-forest boosting models from .npy files.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "rgf",
	Short:         "Gradient boosting with fully corrective tree refits",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.AddCommand(newTrainCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "rgf:", err)
		os.Exit(1)
	}
}
