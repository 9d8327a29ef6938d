// Package cmd provides the CLI commands for Vigil.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vigilwaf/vigil/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "vigil",
	Short: "Vigil - Web Application Firewall reverse proxy",
	Long: `Vigil is a web application firewall: a reverse proxy that inspects HTTP
traffic with a static signature engine and an ML scoring service, classifies
each request against a four-band verdict ladder, and forwards everything it
doesn't block to a protected origin.

A companion Control Plane stores every non-safe request, serves an admin
API for rules/alerts/analytics, looks up threat intelligence on suspicious
clients, and recommends virtual patches via an LLM-backed analysis service.

Quick start:
  1. Create a config file: vigil.yaml
  2. Run: vigil serve

Configuration:
  Config is loaded from vigil.yaml in the current directory, $HOME/.vigil/,
  or /etc/vigil/.

  Environment variables can override config values with the VIGIL_ prefix.
  Example: VIGIL_SERVER_PROXY_ADDR=:9090

Commands:
  serve          Start the Detection Pipeline and Control Plane
  hash-password  Generate an argon2id hash for an admin password
  version        Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./vigil.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
