package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"kycdesk/internal/document"
)

func newClassifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <document>...",
		Short: "Classify documents locally as CPF, CNPJ or unknown",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "INPUT\tTYPE\tDIGITS\tFORMATTED")
			for _, raw := range args {
				doc := document.Classify(raw)
				label := doc.Label()
				if label == "" {
					label = string(document.KindUnknown)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", raw, label, doc.Digits, doc.Formatted())
			}
			return w.Flush()
		},
	}
}
