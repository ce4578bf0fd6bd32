package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kycdesk/internal/document"
	dossierhandler "kycdesk/internal/dossier/handler"
)

var errNoDocuments = errors.New("no documents found in file")

func newBatchCommand(opts *globalOptions) *cobra.Command {
	var (
		file      string
		aiEnabled bool
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Create dossiers for every document listed in a file",
		Long: `Reads documents separated by newlines or semicolons, reports how many were
found and submits them as one batch. Items are sent as written; the server
classifies each one and reports failures per document.`,
		Example: `  kycctl batch --file docs.txt
  kycctl batch --file docs.txt --ai`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read %s: %w", file, err)
			}
			docs := document.ParseBatch(string(raw))
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d documents found\n", len(docs))
			if len(docs) == 0 {
				return errNoDocuments
			}

			var res dossierhandler.BatchResponse
			err = opts.client().do(cmd.Context(), "POST", "/dossiers/batch",
				dossierhandler.BatchRequest{Documents: docs, EnableAI: aiEnabled}, &res)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "processed: %d  successful: %d  failed: %d\n", res.TotalProcessed, res.Successful, res.Failed)
			for _, e := range res.Errors {
				fmt.Fprintf(out, "  %s: %s\n", e.Document, e.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "File with one document per line or separated by ';'")
	cmd.Flags().BoolVar(&aiEnabled, "ai", false, "Attach an AI narrative to each dossier")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
