// Package main - test-runner
// Runs the end-to-end hint scenarios outside of go test.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MRamiBalles/hintserver/internal/platform/logger"
	"github.com/MRamiBalles/hintserver/test"
)

func main() {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "test-runner",
		Short: "Run the hint overlay scenario suite",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.Discard()
			if verbose {
				log = logger.NewLogger()
			}

			fmt.Println("HINT SERVER - SCENARIO SUITE")
			fmt.Println(strings.Repeat("=", 60))

			results := test.RunAll(cmd.Context(), log)
			passed, failed := 0, 0
			for _, r := range results {
				mark := "PASS"
				if r.Passed {
					passed++
				} else {
					failed++
					mark = "FAIL"
				}
				fmt.Printf("[%s] %s\n", mark, r.ScenarioName)
				if !r.Passed || verbose {
					fmt.Printf("       expected: %s\n       actual:   %s\n", r.Expected, r.Actual)
				}
			}

			fmt.Println(strings.Repeat("=", 60))
			fmt.Printf("   Passed: %d\n", passed)
			fmt.Printf("   Failed: %d\n", failed)
			if failed > 0 {
				return fmt.Errorf("%d scenario(s) failed", failed)
			}
			return nil
		},
	}
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log scheduler output and print every result")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
