package cmd

import (
	"github.com/bitswalk/upenwrt/src/upenwrtctl/internal/client"
	"github.com/bitswalk/upenwrt/src/upenwrtctl/internal/output"
	"github.com/spf13/cobra"
)

// completionOperationIDs completes IDs of recent operations
func completionOperationIDs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return operationSuggestions(cmd, "")
}

// completionActiveOperationIDs completes IDs of operations that can still be canceled
func completionActiveOperationIDs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	queued, _ := operationSuggestions(cmd, "queued")
	running, _ := operationSuggestions(cmd, "running")
	return append(running, queued...), cobra.ShellCompDirectiveNoFileComp
}

func operationSuggestions(cmd *cobra.Command, status string) ([]string, cobra.ShellCompDirective) {
	resp, err := getClient().ListOperations(commandContext(cmd), &client.ListOptions{Status: status})
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	suggestions := make([]string, len(resp.Operations))
	for i, op := range resp.Operations {
		suggestions[i] = op.ID + "\t" + op.TargetName + " " + op.BoardName + " (" + op.Status + ")"
	}
	return suggestions, cobra.ShellCompDirectiveNoFileComp
}

// completionCacheKeys completes cached object keys under the typed prefix
func completionCacheKeys(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	resp, err := getClient().ListCacheObjects(commandContext(cmd), toComplete)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	suggestions := make([]string, len(resp.Objects))
	for i, obj := range resp.Objects {
		suggestions[i] = obj.Key
	}
	return suggestions, cobra.ShellCompDirectiveNoFileComp
}

// completionOutputFormat provides completion for --output flag
func completionOutputFormat(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return output.Formats, cobra.ShellCompDirectiveNoFileComp
}

// completionOperationStatus provides completion for --status flag
func completionOperationStatus(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return operationStatuses, cobra.ShellCompDirectiveNoFileComp
}
