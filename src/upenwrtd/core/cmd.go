// Package core provides the command and server wiring for upenwrtd.
package core

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bitswalk/upenwrt/src/common/cli"
	"github.com/bitswalk/upenwrt/src/common/logs"
	"github.com/bitswalk/upenwrt/src/common/version"
)

var (
	// VersionInfo holds version information - set at build time via ldflags
	VersionInfo = version.New()

	// Global logger instance
	log = logs.NewDefault()

	// Configuration file path
	cfgFile string
)

// Linker variables, set via ldflags at build time
var (
	Version        = "dev"
	ReleaseVersion = "0.0.0"
	BuildDate      = "unknown"
	GitCommit      = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "upenwrtd",
	Short: "OpenWrt sysupgrade image service",
	Long: `upenwrtd builds OpenWrt sysupgrade images on demand.

A router reports its target, board, running release and installed packages;
upenwrtd downloads the matching image builder, works out which packages were
installed on top of the firmware defaults and builds an image that keeps them.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

// Execute runs the root command
func Execute() {
	VersionInfo.Version = Version
	VersionInfo.ReleaseVersion = ReleaseVersion
	VersionInfo.BuildDate = BuildDate
	VersionInfo.GitCommit = GitCommit

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cli.RegisterConfigFlag(rootCmd, &cfgFile, "/etc/upenwrtd/upenwrtd.yaml")

	// Server flags
	rootCmd.Flags().IntP("port", "p", 8000, "Port to listen on")
	rootCmd.Flags().StringP("listen", "l", "", "Address to bind to")
	rootCmd.Flags().String("base-url", "", "Public URL of this service, substituted into get.sh")
	rootCmd.Flags().String("base-path", "", "Path prefix all routes are served under")
	rootCmd.Flags().Bool("trust-proxy", false, "Take client addresses from X-Forwarded-For")
	rootCmd.Flags().Int("build-rate", 10, "Image requests per minute and client, 0 for no limit")

	cli.RegisterLogFlags(rootCmd)

	// Paths
	rootCmd.Flags().StringP("basedir", "d", "~/.upenwrtd", "Base directory holding static, cache, work and repo")

	// Cache flags
	rootCmd.Flags().String("cache-type", "local", "Cache backend type: 'local' or 's3'")
	rootCmd.Flags().String("s3-endpoint", "", "S3-compatible storage endpoint URL")
	rootCmd.Flags().String("s3-region", "us-east-1", "S3 region")
	rootCmd.Flags().String("s3-bucket", "upenwrtd-cache", "S3 bucket for cached image builders")
	rootCmd.Flags().String("s3-access-key", "", "S3 access key ID")
	rootCmd.Flags().String("s3-secret-key", "", "S3 secret access key")
	rootCmd.Flags().Bool("s3-path-style", true, "Use path-style addressing for S3")

	// Download flags
	rootCmd.Flags().String("mirror-url", "", "Download image builders from this mirror instead of downloads.openwrt.org")
	rootCmd.Flags().String("proxy-url", "", "HTTP(S) proxy for downloads")

	// Build flags
	rootCmd.Flags().Int("workers", 2, "Number of concurrent operations")
	rootCmd.Flags().Duration("build-timeout", 60*time.Minute, "Upper bound on a single operation")
	rootCmd.Flags().Bool("keep-workdir", false, "Keep operation workdirs for debugging")

	_ = cli.BindFlags(rootCmd, map[string]string{
		"port":          "server.port",
		"listen":        "server.bind",
		"base-url":      "server.base_url",
		"base-path":     "server.base_path",
		"trust-proxy":   "server.trust_proxy",
		"build-rate":    "ratelimit.build_requests_per_min",
		"basedir":       "paths.base",
		"cache-type":    "cache.type",
		"s3-endpoint":   "cache.s3.endpoint",
		"s3-region":     "cache.s3.region",
		"s3-bucket":     "cache.s3.bucket",
		"s3-access-key": "cache.s3.access_key_id",
		"s3-secret-key": "cache.s3.secret_access_key",
		"s3-path-style": "cache.s3.use_path_style",
		"mirror-url":    "download.mirror_url",
		"proxy-url":     "download.proxy_url",
		"workers":       "build.workers",
		"build-timeout": "build.timeout",
		"keep-workdir":  "build.keep_workdir",
	})

	// Set defaults
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("server.bind", "")
	viper.SetDefault("server.base_path", "")
	viper.SetDefault("server.trust_proxy", false)
	viper.SetDefault("ratelimit.enabled", true)
	viper.SetDefault("ratelimit.build_requests_per_min", 10)
	viper.SetDefault("ratelimit.api_requests_per_min", 120)
	viper.SetDefault("paths.base", "~/.upenwrtd")
	viper.SetDefault("cache.type", "local")
	viper.SetDefault("cache.s3.region", "us-east-1")
	viper.SetDefault("cache.s3.bucket", "upenwrtd-cache")
	viper.SetDefault("cache.s3.use_path_style", true)
	viper.SetDefault("download.timeout", "30m")
	viper.SetDefault("download.user_agent", "")
	viper.SetDefault("build.workers", 2)
	viper.SetDefault("build.timeout", "60m")
	viper.SetDefault("build.image_marker", "sysupgrade")
	viper.SetDefault("build.keep_workdir", false)
	viper.SetDefault("operations.retention", "24h")
}

// initConfig reads in config file and ENV variables if set
func initConfig() error {
	opts := cli.DefaultConfigOptions("upenwrtd", "UPENWRTD")
	opts.SearchPaths = []string{
		"/etc/upenwrtd",
		"~/.upenwrtd",
		".",
	}
	opts.ConfigFile = cfgFile

	if err := cli.InitConfig(opts); err != nil {
		return err
	}

	log = cli.InitLogger("upenwrtd")
	return nil
}
