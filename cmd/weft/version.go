package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/weft"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of weft",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "weft version %s\n", strings.TrimSpace(weft.Version))
		},
	}
}
