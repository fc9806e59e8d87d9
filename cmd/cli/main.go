package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	host  string
	token string
)

var rootCmd = &cobra.Command{
	Use:   "tourney-cli",
	Short: "A CLI to interact with the tourney server",
	Long: `A command-line interface for making requests to the various endpoints
of the tourney scheduler. Admin commands need --token or TOURNEY_ADMIN_TOKEN.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&host, "host", "http://localhost:8080", "The host address of the server")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("TOURNEY_ADMIN_TOKEN"), "Admin bearer token")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Whoops. There was an error while executing your command '%s'", err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}
