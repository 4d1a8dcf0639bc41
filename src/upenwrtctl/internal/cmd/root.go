// Package cmd implements the upenwrtctl commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitswalk/upenwrt/src/common/cli"
	"github.com/bitswalk/upenwrt/src/common/version"
	"github.com/bitswalk/upenwrt/src/upenwrtctl/internal/client"
	"github.com/bitswalk/upenwrt/src/upenwrtctl/internal/output"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// VersionInfo holds version information - set at build time via ldflags
	VersionInfo = version.New()

	// Configuration file path
	cfgFile string

	// Output format (table, json or yaml)
	outputFormat string

	// API client instance
	apiClient *client.Client
)

// Linker variables - set via ldflags at build time
var (
	Version        = "dev"
	ReleaseVersion = "0.0.0"
	BuildDate      = "unknown"
	GitCommit      = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "upenwrtctl",
	Short: "upenwrt CLI Client",
	Long: `upenwrtctl is the command-line client for an upenwrtd server.

It builds sysupgrade images and package lists for a device, and lets
operators inspect or cancel running operations and manage the download cache.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" && !cmd.Flags().Changed("server") {
			return nil
		}
		return initConfig()
	},
}

// Execute runs the root command
func Execute() {
	VersionInfo.Version = Version
	VersionInfo.ReleaseVersion = ReleaseVersion
	VersionInfo.BuildDate = BuildDate
	VersionInfo.GitCommit = GitCommit

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		output.PrintError(err)
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Output() != "" {
			fmt.Fprintf(os.Stderr, "\n%s\n", apiErr.Output())
		}
		stop()
		os.Exit(1)
	}
}

func init() {
	cli.RegisterConfigFlag(rootCmd, &cfgFile, "~/.upenwrtctl/upenwrtctl.yaml")

	rootCmd.PersistentFlags().StringP("server", "s", "", "upenwrtd server URL (default: http://localhost:8000)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", output.FormatTable, "Output format: table, json, yaml")

	_ = viper.BindPFlag("server.url", rootCmd.PersistentFlags().Lookup("server"))

	viper.SetDefault("server.url", "http://localhost:8000")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(operationCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(imageCmd)

	registerCompletions()
}

func registerCompletions() {
	_ = rootCmd.RegisterFlagCompletionFunc("output", completionOutputFormat)

	operationGetCmd.ValidArgsFunction = completionOperationIDs
	operationCancelCmd.ValidArgsFunction = completionActiveOperationIDs
	_ = operationListCmd.RegisterFlagCompletionFunc("status", completionOperationStatus)

	cacheEvictCmd.ValidArgsFunction = completionCacheKeys
}

func initConfig() error {
	opts := cli.ConfigOptions{
		ConfigName: "upenwrtctl",
		ConfigType: "yaml",
		EnvPrefix:  "UPENWRTCTL",
		SearchPaths: []string{
			"/etc/upenwrtctl",
			"~/.upenwrtctl",
		},
	}
	opts.ConfigFile = cfgFile

	return cli.InitConfig(opts)
}

// getClient returns the API client, creating it if needed
func getClient() *client.Client {
	if apiClient == nil {
		apiClient = client.New(viper.GetString("server.url"))
	}
	return apiClient
}

// getOutputFormat returns the current output format
func getOutputFormat() string {
	return outputFormat
}

// commandContext returns the context the command was executed with
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
