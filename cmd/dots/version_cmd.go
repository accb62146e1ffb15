package main

import (
	"fmt"

	"github.com/HtoHe/dotfiles/internal/version"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newVersionCmd())
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print dots build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(version.Info())
			}
			if short, _ := cmd.Flags().GetBool("short"); short {
				_, err := fmt.Fprintln(out, version.ShortWithApp())
				return err
			}
			_, err := fmt.Fprintln(out, version.DetailedWithApp())
			return err
		},
	}
	cmd.Flags().Bool("short", false, "Print only the version and revision")
	cmd.Flags().Bool("json", false, "Print build information as JSON")
	cmd.MarkFlagsMutuallyExclusive("short", "json")
	return cmd
}
