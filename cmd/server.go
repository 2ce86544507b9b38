package cmd

import (
	"fmt"

	app "stream-access-guard/internal"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the session admission server",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Starting stream access guard server...")
		app.ServerMain(provider)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
