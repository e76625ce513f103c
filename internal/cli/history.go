// history.go implements "sitewright history": the local archive of finished
// generations, with optional age-based pruning, plus the server-side view.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past generations",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var (
	historyLimitFlag  int
	pruneDaysFlag     int
	historyRemoteFlag bool
)

func init() {
	historyCmd.Flags().IntVar(&historyLimitFlag, "limit", 20, "Maximum entries to show")
	historyCmd.Flags().IntVar(&pruneDaysFlag, "prune-days", 0, "Delete local entries older than N days before listing")
	historyCmd.Flags().BoolVar(&historyRemoteFlag, "remote", false, "List the server-side history instead of the local archive")
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if historyRemoteFlag {
		entries, err := a.client.History(cmd.Context())
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No generations on the server.")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%s  %-12s %3d%%  %s\n", e.GenerationID, e.Status, e.Progress, e.BusinessName)
		}
		return nil
	}

	if pruneDaysFlag > 0 {
		removed, err := a.history.PruneByAge(pruneDaysFlag)
		if err != nil {
			return fmt.Errorf("pruning history: %w", err)
		}
		if removed > 0 {
			fmt.Printf("Pruned %d old generation(s).\n", removed)
		}
	}

	entries, err := a.history.List(historyLimitFlag)
	if err != nil {
		return fmt.Errorf("listing history: %w", err)
	}
	if len(entries) == 0 {
		fmt.Println("No finished generations yet.")
		return nil
	}

	for _, e := range entries {
		line := fmt.Sprintf("%s  %-10s %3d%%", e.ID, e.Status, e.Progress)
		if e.QualityScore > 0 {
			line += fmt.Sprintf("  score %.1f", e.QualityScore)
		}
		if e.ErrorCode != "" {
			line += fmt.Sprintf("  [%s]", e.ErrorCode)
		}
		line += "  " + e.BusinessName
		fmt.Println(line)
	}
	return nil
}
