package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the scalper CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("scalper version %s\n", version)
		fmt.Println("An intraday index scalper for the IG REST dealing API")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
