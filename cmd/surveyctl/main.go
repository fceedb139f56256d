package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	ownerName string
	publish   bool

	rootCmd = &cobra.Command{
		Use:           "surveyctl",
		Short:         "Validate and seed smartsurvey definitions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	validateCmd = &cobra.Command{
		Use:   "validate [file.yaml...]",
		Short: "Build the strict flow graph of each survey file and report problems",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runValidate, // Defined in validate.go
	}

	seedCmd = &cobra.Command{
		Use:   "seed [file.yaml]",
		Short: "Validate a survey file and insert it into MongoDB",
		Args:  cobra.ExactArgs(1),
		RunE:  runSeed, // Defined in seed.go
	}
)

func init() {
	seedCmd.Flags().StringVar(&ownerName, "owner", "admin", "host username that will own the survey")
	seedCmd.Flags().BoolVar(&publish, "publish", false, "publish the survey after inserting it")

	rootCmd.AddCommand(validateCmd, seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
