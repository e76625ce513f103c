// devserver.go implements "sitewright dev-server": the local stub backend.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/sitewright-dev/sitewright/internal/devserver"
	"github.com/sitewright-dev/sitewright/internal/logger"
)

var addrFlag string

var devServerCmd = &cobra.Command{
	Use:   "dev-server",
	Short: "Run a local stub generation backend",
	Long: `Run a local backend that speaks the generation API and stream contract
but replays a canned workflow. Useful for trying the client without the real
service: point SITEWRIGHT_API_URL and SITEWRIGHT_WS_URL at it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := logger.New("dev", verbose)
		if err != nil {
			return err
		}
		defer log.Sync()

		return devserver.New(log).Run(addrFlag)
	},
}

func init() {
	devServerCmd.Flags().StringVar(&addrFlag, "addr", ":8000", "Listen address")
}
