// generate.go implements "sitewright generate": collect the business
// descriptor, start a session and watch it live.
package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sitewright-dev/sitewright/internal/api"
	"github.com/sitewright-dev/sitewright/internal/tui"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a website for your business",
	Long: `Start a website generation. The business descriptor comes from flags, or
from an interactive wizard when run in a terminal with no flags. The command
then follows the generation live until it completes or fails.`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

var (
	nameFlag         string
	categoryFlag     string
	descriptionFlag  string
	audienceFlag     string
	colorsFlag       []string
	requirementsFlag string
	noWatchFlag      bool
)

func init() {
	generateCmd.Flags().StringVar(&nameFlag, "name", "", "Business name")
	generateCmd.Flags().StringVar(&categoryFlag, "category", "", "Business category (restaurant, retail, ...)")
	generateCmd.Flags().StringVar(&descriptionFlag, "description", "", "What the business does")
	generateCmd.Flags().StringVar(&audienceFlag, "audience", "", "Target audience")
	generateCmd.Flags().StringSliceVar(&colorsFlag, "colors", nil, "Preferred colors")
	generateCmd.Flags().StringVar(&requirementsFlag, "requirements", "", "Additional requirements")
	generateCmd.Flags().BoolVar(&noWatchFlag, "no-watch", false, "Start the generation and return immediately")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	info, err := collectBusinessInfo()
	if err != nil {
		if errors.Is(err, tui.ErrCancelled) {
			fmt.Println("Cancelled.")
			return nil
		}
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	id, err := a.store.StartGeneration(cmd.Context(), info)
	if err != nil {
		return fmt.Errorf("starting generation: %w", err)
	}
	fmt.Printf("Generation started: %s\n", id)

	if noWatchFlag {
		fmt.Printf("Follow it with: sitewright watch %s\n", id)
		return nil
	}
	return watchSession(a, id)
}

// collectBusinessInfo resolves the descriptor from flags, falling back to
// the wizard on an interactive terminal.
func collectBusinessInfo() (api.BusinessInfo, error) {
	flagsUsed := nameFlag != "" || categoryFlag != "" || descriptionFlag != ""

	if !flagsUsed {
		if !stdoutIsTTY() {
			return api.BusinessInfo{}, fmt.Errorf("no terminal available; provide --name, --category and --description")
		}
		return tui.RunWizard()
	}

	if nameFlag == "" || categoryFlag == "" || descriptionFlag == "" {
		return api.BusinessInfo{}, fmt.Errorf("--name, --category and --description are all required")
	}
	return api.BusinessInfo{
		BusinessName:           nameFlag,
		BusinessCategory:       categoryFlag,
		BusinessDescription:    descriptionFlag,
		TargetAudience:         audienceFlag,
		PreferredColors:        colorsFlag,
		AdditionalRequirements: requirementsFlag,
	}, nil
}
