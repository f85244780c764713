package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "gatehouse",
	Short: "Gatehouse is a credential management portal",
	Long: `A small admin/user portal for credential management: login,
admin-driven user creation, forgot-password requests, and admin-issued
password resets with a mandatory change on next login.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
}
