package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "venturist",
		Short: "AI business portfolio manager",
	}
	root.AddCommand(serveCMD(), migrateCMD(), agentCMD(), reviewCMD(), indexCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
