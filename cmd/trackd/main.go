package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "trackd",
	Short: "trackd — project and bug tracking server",
	Long:  "trackd is a team-oriented project and bug tracking server with credential sign-in, rotating refresh sessions, and invitation-based team membership.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: configs/trackd.yaml)")
}

func main() {
	// A local .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
