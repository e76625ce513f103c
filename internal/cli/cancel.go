// cancel.go implements "sitewright cancel".
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <generation-id>",
	Short: "Cancel a running generation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.client.CancelGeneration(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("cancelling generation: %w", err)
		}
		fmt.Printf("Generation %s cancelled.\n", args[0])
		return nil
	},
}
