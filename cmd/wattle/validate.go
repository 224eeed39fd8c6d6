package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wattlebot/wattle/internal/validator"
	"github.com/wattlebot/wattle/pkg/adapters/flowfile"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a flow file for consistency",
	Long:  `Loads the flow file and reports structural problems: dangling block references, invalid regex triggers, unreachable blocks, and messages that render to nothing.`,
	Run: func(cmd *cobra.Command, args []string) {
		flowPath, _ := cmd.Flags().GetString("flow")
		if len(args) > 0 {
			flowPath = args[0]
		}
		if err := runValidate(flowPath); err != nil {
			fmt.Printf("Validation failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(flowPath string) error {
	file, err := flowfile.Load(flowPath)
	if err != nil {
		return err
	}

	report := validator.Validate(file.Blocks)
	for _, w := range report.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	if err := report.Err(); err != nil {
		return err
	}

	fmt.Printf("Flow is valid: %d blocks. ✅\n", len(file.Blocks))
	return nil
}
