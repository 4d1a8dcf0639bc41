package cmd

import (
	"fmt"

	"github.com/bitswalk/upenwrt/src/upenwrtctl/internal/output"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server health",
	Long:  `Checks the health status of the upenwrtd server and its worker usage.`,
	RunE:  runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	resp, err := getClient().Health(commandContext(cmd))
	if err != nil {
		return err
	}

	return output.PrintFormatted(getOutputFormat(), resp, func() error {
		output.PrintTable(
			[]string{"FIELD", "VALUE"},
			[][]string{
				{"Status", resp.Status},
				{"Timestamp", resp.Timestamp},
				{"Workers", fmt.Sprintf("%d/%d busy", resp.Busy, resp.Workers)},
			},
		)
		return nil
	})
}
