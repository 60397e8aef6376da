package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tracelight/dataset-cli/internal/export"
)

var (
	exportFormat  string
	exportOut     string
	exportVersion string
)

var exportCmd = &cobra.Command{
	Use:   "export <dataset-id>",
	Short: "Export a dataset's examples to CSV or XLSX",
	Long:  "Resolves the latest non-deleted state of every example (optionally as of a version) and writes it as a flat file.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("cli"); err != nil {
			return err
		}
		ctx := cmd.Context()

		svc, _, cleanup, err := initService(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		ds, err := svc.GetDataset(ctx, args[0])
		if err != nil {
			return err
		}
		states, err := svc.ListExamples(ctx, args[0], optional(exportVersion))
		if err != nil {
			return err
		}

		out := exportOut
		if out == "" {
			out = ds.Name + "." + exportFormat
		}
		f, err := os.Create(out)
		if err != nil {
			return eris.Wrap(err, "export: create output file")
		}
		defer f.Close()

		switch exportFormat {
		case "csv":
			err = export.WriteCSV(f, states)
		case "xlsx":
			err = export.WriteXLSX(f, ds.Name, states)
		default:
			return eris.Errorf("unsupported export format: %s", exportFormat)
		}
		if err != nil {
			return err
		}

		zap.L().Info("exported dataset",
			zap.String("dataset", ds.Name),
			zap.Int("examples", len(states)),
			zap.String("file", out),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "output format: csv or xlsx")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output path (default <dataset>.<format>)")
	exportCmd.Flags().StringVar(&exportVersion, "version", "", "resolve state as of this version id")
	rootCmd.AddCommand(exportCmd)
}
