package main

import (
	"fmt"
	"os"

	"github.com/claytile-api/cmd/uploader/command"
	"github.com/spf13/cobra"
)

func main() {
	cmd := &cobra.Command{
		Use:   "uploader",
		Short: "Clay Tile Roofing upload client",
		Long:  `uploader sends files to a running api through the delegated upload queue.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage: true,
	}

	cmd.AddCommand(command.SendCommand())

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
