package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bitswalk/upenwrt/src/upenwrtctl/internal/client"
	"github.com/bitswalk/upenwrt/src/upenwrtctl/internal/output"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var imageCmd = &cobra.Command{
	Use:     "image",
	Aliases: []string{"img"},
	Short:   "Build sysupgrade images for a device",
}

var imageListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the packages an image would be built with",
	Args:  cobra.NoArgs,
	RunE:  runImageList,
}

var imageBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a sysupgrade image and save it",
	Long: `Builds a sysupgrade image for the given target and board, keeping the
packages the device has installed on top of its firmware defaults.

The image is saved under the name chosen by the server unless --file is set.
Use --file - to write it to standard output.`,
	Args: cobra.NoArgs,
	RunE: runImageBuild,
}

func init() {
	for _, c := range []*cobra.Command{imageListCmd, imageBuildCmd} {
		c.Flags().StringP("target", "t", "", "Target, e.g. ath79/generic (required)")
		c.Flags().StringP("board", "b", "", "Board name as reported by the device (required)")
		c.Flags().String("target-version", "", "Release to build, or snapshot (default: snapshot)")
		c.Flags().String("current-release", "", "Release of the running firmware")
		c.Flags().String("current-revision", "", "Revision of the running firmware")
		c.Flags().StringArrayP("pkg", "p", nil, "Installed package, name[,alias...] (repeatable)")
		c.Flags().String("packages-file", "", "File with whitespace separated package entries")
		c.Flags().Duration("timeout", 0, "Give up after this long (default: no limit)")
		_ = c.MarkFlagRequired("target")
		_ = c.MarkFlagRequired("board")
	}
	imageBuildCmd.Flags().StringP("file", "f", "", "Where to save the image")

	imageCmd.AddCommand(imageListCmd)
	imageCmd.AddCommand(imageBuildCmd)
}

func imageRequest(cmd *cobra.Command) (*client.ImageRequest, error) {
	flags := cmd.Flags()
	req := &client.ImageRequest{}
	req.TargetName, _ = flags.GetString("target")
	req.BoardName, _ = flags.GetString("board")
	req.TargetVersion, _ = flags.GetString("target-version")
	req.CurrentRelease, _ = flags.GetString("current-release")
	req.CurrentRevision, _ = flags.GetString("current-revision")
	req.Packages, _ = flags.GetStringArray("pkg")

	if file, _ := flags.GetString("packages-file"); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read packages file: %w", err)
		}
		req.Packages = append(req.Packages, strings.Fields(string(data))...)
	}
	return req, nil
}

func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	if timeout, _ := cmd.Flags().GetDuration("timeout"); timeout > 0 {
		return context.WithTimeout(commandContext(cmd), timeout)
	}
	return context.WithCancel(commandContext(cmd))
}

func runImageList(cmd *cobra.Command, args []string) error {
	req, err := imageRequest(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(cmd)
	defer cancel()

	packages, id, err := getClient().ListPackages(ctx, req)
	if err != nil {
		return err
	}

	result := map[string]interface{}{
		"operation_id": id,
		"packages":     packages,
	}
	return output.PrintFormatted(getOutputFormat(), result, func() error {
		output.PrintMessage(strings.Join(packages, " "))
		return nil
	})
}

func runImageBuild(cmd *cobra.Command, args []string) error {
	req, err := imageRequest(cmd)
	if err != nil {
		return err
	}
	dest, _ := cmd.Flags().GetString("file")

	ctx, cancel := requestContext(cmd)
	defer cancel()

	if dest == "-" {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			return fmt.Errorf("refusing to write an image to a terminal, redirect stdout or use --file")
		}
		_, err := getClient().BuildImage(ctx, req, os.Stdout)
		return err
	}

	dir := "."
	if dest != "" {
		dir = filepath.Dir(dest)
	}
	tmp, err := os.CreateTemp(dir, ".upenwrt-image-")
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	defer os.Remove(tmp.Name())

	started := time.Now()
	image, err := getClient().BuildImage(ctx, req, tmp)
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to write image: %w", cerr)
	}
	if err != nil {
		return err
	}

	if dest == "" {
		dest = "sysupgrade.bin"
		if image.Name != "" {
			dest = filepath.Base(image.Name)
		}
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}

	result := map[string]interface{}{
		"operation_id": image.OperationID,
		"file":         dest,
		"size":         image.Size,
	}
	return output.PrintFormatted(getOutputFormat(), result, func() error {
		output.PrintMessage(fmt.Sprintf("Saved %s (%s) in %s, operation %s",
			dest, output.FormatSize(image.Size), time.Since(started).Round(time.Second), image.OperationID))
		return nil
	})
}
