// status.go implements the one-shot "sitewright status" and
// "sitewright result" commands.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <generation-id>",
	Short: "Show the current status of a generation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		status, err := a.client.GetStatus(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Generation: %s\n", status.GenerationID)
		fmt.Printf("Status:     %s\n", status.Status)
		fmt.Printf("Progress:   %d%%\n", status.Progress)
		if status.CurrentStep != "" {
			fmt.Printf("Step:       %s\n", status.CurrentStep)
		}
		if status.CompletedAt != "" {
			fmt.Printf("Completed:  %s\n", status.CompletedAt)
		}
		for _, e := range status.Errors {
			fmt.Printf("Error:      %s\n", e)
		}
		return nil
	},
}

var resultCmd = &cobra.Command{
	Use:   "result <generation-id>",
	Short: "Print the final website artifact for a completed generation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		result, err := a.client.GetResult(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		// Raw JSON to stdout so it can be piped into files or jq.
		fmt.Println(string(result.Website))
		return nil
	},
}
