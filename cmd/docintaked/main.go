package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "docintaked",
		Short:         "Document intake and report generation service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (default docintake.yaml)")
	root.AddCommand(newServeCmd(), newProcessCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
