package cmd

import (
	"fmt"

	"github.com/bitswalk/upenwrt/src/upenwrtctl/internal/client"
	"github.com/bitswalk/upenwrt/src/upenwrtctl/internal/output"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  `Shows the upenwrtctl client version and optionally the server version.`,
	RunE:  runVersion,
}

func init() {
	versionCmd.Flags().Bool("server", false, "Also show server version")
}

func runVersion(cmd *cobra.Command, args []string) error {
	showServer, _ := cmd.Flags().GetBool("server")

	var serverInfo *client.VersionResponse
	var serverErr error
	if showServer {
		serverInfo, serverErr = getClient().Version(commandContext(cmd))
	}

	result := map[string]interface{}{
		"client": VersionInfo.Map(),
	}
	if serverErr != nil {
		result["server_error"] = serverErr.Error()
	} else if serverInfo != nil {
		result["server"] = serverInfo
	}

	return output.PrintFormatted(getOutputFormat(), result, func() error {
		fmt.Printf("Client: %s\n", VersionInfo.Full())
		if !showServer {
			return nil
		}
		if serverErr != nil {
			fmt.Printf("\nServer: error: %v\n", serverErr)
			return nil
		}
		fmt.Printf("\nServer: %s\n", serverInfo.Version)
		fmt.Printf("  Version:    %s\n", serverInfo.ReleaseVersion)
		fmt.Printf("  Build Date: %s\n", serverInfo.BuildDate)
		fmt.Printf("  Git Commit: %s\n", serverInfo.GitCommit)
		fmt.Printf("  Go Version: %s\n", serverInfo.GoVersion)
		return nil
	})
}
