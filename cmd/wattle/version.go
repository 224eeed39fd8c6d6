package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wattlebot/wattle"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of wattle",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("wattle version %s\n", strings.TrimSpace(wattle.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
