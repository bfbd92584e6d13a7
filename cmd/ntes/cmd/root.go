// Package cmd holds the ntes command tree.
package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ntes/internal/config"
)

var rootCmd = &cobra.Command{
	Use:          "ntes",
	Short:        "NTES marketing site with offline edge cache",
	Long:         "Serves the NTES storefront and admin panel behind an offline-first edge cache.",
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", getenvDefault("NTES_CONFIG", "ntes.yaml"), "path to ntes.yaml")
	pf.Int("port", 0, "edge listen port (overrides server.port)")
	pf.String("origin", "", "origin URL the edge forwards to (overrides server.origin)")
	pf.String("data-dir", "", "directory for the database, blobs and cache (overrides storage.dataDir)")
	pf.String("redis-addr", "", "redis address for the shared gallery listing cache")
	pf.String("jwt-secret", "", "secret that signs admin sessions")

	viper.BindPFlag(config.KeyPort, pf.Lookup("port"))
	viper.BindPFlag(config.KeyOrigin, pf.Lookup("origin"))
	viper.BindPFlag(config.KeyDataDir, pf.Lookup("data-dir"))
	viper.BindPFlag(config.KeyRedisAddr, pf.Lookup("redis-addr"))
	viper.BindPFlag(config.KeyJWTSecret, pf.Lookup("jwt-secret"))
}

func initConfig() {
	viper.SetEnvPrefix("NTES")
	viper.AutomaticEnv()
}

// loadConfig reads the YAML file named by --config and applies flag and
// NTES_* environment overrides.
func loadConfig() (config.Config, error) {
	path := rootCmd.PersistentFlags().Lookup("config").Value.String()
	return config.LoadWithOverrides(path, viper.GetViper())
}

func getenvDefault(name, def string) string {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	return v
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
