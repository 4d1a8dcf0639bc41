package cmd

import (
	"fmt"
	"time"

	"github.com/bitswalk/upenwrt/src/upenwrtctl/internal/output"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and evict cached downloads",
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the cache backend status",
	Args:  cobra.NoArgs,
	RunE:  runCacheStatus,
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached objects",
	Args:  cobra.NoArgs,
	RunE:  runCacheList,
}

var cacheEvictCmd = &cobra.Command{
	Use:   "evict <key>",
	Short: "Remove a cached object so it is downloaded again",
	Args:  cobra.ExactArgs(1),
	RunE:  runCacheEvict,
}

func init() {
	cacheListCmd.Flags().String("prefix", "", "Only list keys starting with this prefix")

	cacheCmd.AddCommand(cacheStatusCmd)
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheEvictCmd)
}

func runCacheStatus(cmd *cobra.Command, args []string) error {
	resp, err := getClient().CacheStatus(commandContext(cmd))
	if err != nil {
		return err
	}

	return output.PrintFormatted(getOutputFormat(), resp, func() error {
		output.PrintTable(
			[]string{"FIELD", "VALUE"},
			[][]string{
				{"Type", resp.Type},
				{"Location", resp.Location},
				{"Available", fmt.Sprintf("%t", resp.Available)},
				{"Message", resp.Message},
			},
		)
		return nil
	})
}

func runCacheList(cmd *cobra.Command, args []string) error {
	prefix, _ := cmd.Flags().GetString("prefix")

	resp, err := getClient().ListCacheObjects(commandContext(cmd), prefix)
	if err != nil {
		return err
	}

	return output.PrintFormatted(getOutputFormat(), resp, func() error {
		if resp.Count == 0 {
			output.PrintMessage("No cached objects found.")
			return nil
		}

		rows := make([][]string, len(resp.Objects))
		for i, obj := range resp.Objects {
			rows[i] = []string{obj.Key, output.FormatSize(obj.Size), obj.LastModified.Local().Format(time.RFC3339)}
		}
		output.PrintTable([]string{"KEY", "SIZE", "MODIFIED"}, rows)
		output.PrintMessage(fmt.Sprintf("\n%d objects, %s", resp.Count, output.FormatSize(resp.TotalSize)))
		return nil
	})
}

func runCacheEvict(cmd *cobra.Command, args []string) error {
	if err := getClient().EvictCacheObject(commandContext(cmd), args[0]); err != nil {
		return err
	}
	output.PrintMessage(fmt.Sprintf("Evicted %s", args[0]))
	return nil
}
