package cli

import (
	"fmt"

	"github.com/nconklindev/tablemerge/internal/sheet"

	"github.com/spf13/cobra"
)

func newSheetsCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "sheets FILE...",
		Short: "List the sheets of workbooks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			listing := make(map[string][]string, len(args))
			for _, path := range args {
				names, err := sheet.SheetsFile(path)
				if err != nil {
					return err
				}
				listing[path] = names
				if !asJSON {
					for _, name := range names {
						fmt.Fprintf(cmd.OutOrStdout(), "%s:%s\n", path, name)
					}
				}
			}
			if asJSON {
				return emitJSON(cmd.OutOrStdout(), listing)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print a JSON object of file to sheet names")
	return cmd
}
