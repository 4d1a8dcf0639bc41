package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/bitswalk/upenwrt/src/upenwrtctl/internal/client"
	"github.com/bitswalk/upenwrt/src/upenwrtctl/internal/output"
	"github.com/spf13/cobra"
)

// operationStatuses are the values accepted by operation list --status
var operationStatuses = []string{"queued", "running", "completed", "failed", "canceled"}

var operationCmd = &cobra.Command{
	Use:     "operation",
	Aliases: []string{"op"},
	Short:   "Inspect and cancel build operations",
}

var operationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent operations",
	Args:  cobra.NoArgs,
	RunE:  runOperationList,
}

var operationGetCmd = &cobra.Command{
	Use:   "get <operation-id>",
	Short: "Get an operation by ID",
	Args:  cobra.ExactArgs(1),
	RunE:  runOperationGet,
}

var operationCancelCmd = &cobra.Command{
	Use:   "cancel <operation-id>",
	Short: "Cancel a queued or running operation",
	Args:  cobra.ExactArgs(1),
	RunE:  runOperationCancel,
}

func init() {
	operationListCmd.Flags().Int("limit", 0, "Maximum number of operations to return")
	operationListCmd.Flags().String("status", "", "Filter by status: "+strings.Join(operationStatuses, ", "))

	operationCmd.AddCommand(operationListCmd)
	operationCmd.AddCommand(operationGetCmd)
	operationCmd.AddCommand(operationCancelCmd)
}

func runOperationList(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	status, _ := cmd.Flags().GetString("status")

	resp, err := getClient().ListOperations(commandContext(cmd), &client.ListOptions{Limit: limit, Status: status})
	if err != nil {
		return err
	}

	return output.PrintFormatted(getOutputFormat(), resp, func() error {
		if resp.Count == 0 {
			output.PrintMessage("No operations found.")
			return nil
		}

		now := time.Now()
		rows := make([][]string, len(resp.Operations))
		for i, op := range resp.Operations {
			rows[i] = []string{
				op.ID,
				op.Mode,
				op.TargetName,
				op.BoardName,
				op.TargetVersion,
				op.Status,
				op.State,
				formatDuration(op.Duration(now)),
			}
		}
		output.PrintTable([]string{"ID", "MODE", "TARGET", "BOARD", "VERSION", "STATUS", "STATE", "DURATION"}, rows)
		return nil
	})
}

func runOperationGet(cmd *cobra.Command, args []string) error {
	op, err := getClient().GetOperation(commandContext(cmd), args[0])
	if err != nil {
		return err
	}

	return output.PrintFormatted(getOutputFormat(), op, func() error {
		rows := [][]string{
			{"ID", op.ID},
			{"Mode", op.Mode},
			{"Target", op.TargetName},
			{"Board", op.BoardName},
			{"Version", op.TargetVersion},
		}
		if op.CurrentRelease != "" || op.CurrentRevision != "" {
			rows = append(rows, []string{"Current firmware", strings.TrimSpace(op.CurrentRelease + " " + op.CurrentRevision)})
		}
		rows = append(rows,
			[]string{"Status", op.Status},
			[]string{"State", op.State},
			[]string{"Active", fmt.Sprintf("%t", op.Active)},
			[]string{"Created", op.CreatedAt.Local().Format(time.RFC3339)},
			[]string{"Duration", formatDuration(op.Duration(time.Now()))},
			[]string{"Requested packages", strings.Join(op.Packages, " ")},
		)
		if len(op.InstallPackages) > 0 {
			rows = append(rows, []string{"Installed packages", strings.Join(op.InstallPackages, " ")})
		}
		if op.ImageName != "" {
			rows = append(rows, []string{"Image", fmt.Sprintf("%s (%s)", op.ImageName, output.FormatSize(op.ImageSize))})
		}
		if op.ErrorMessage != "" {
			rows = append(rows, []string{"Error", fmt.Sprintf("%s (at %s)", firstLine(op.ErrorMessage), op.ErrorState)})
		}
		output.PrintTable([]string{"FIELD", "VALUE"}, rows)
		return nil
	})
}

func runOperationCancel(cmd *cobra.Command, args []string) error {
	resp, err := getClient().CancelOperation(commandContext(cmd), args[0])
	if err != nil {
		return err
	}

	return output.PrintFormatted(getOutputFormat(), resp, func() error {
		output.PrintMessage(fmt.Sprintf("%s: %s", resp.ID, resp.Message))
		return nil
	})
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.String()
}

// Subprocess failures carry the whole build log; tables only show the summary.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
