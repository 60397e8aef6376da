package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/tracelight/dataset-cli/internal/dataset"
	"github.com/tracelight/dataset-cli/internal/handle"
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Manage datasets and their examples",
}

var (
	datasetDescription string
	datasetMetadata    string
	datasetName        string
)

var datasetCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an empty dataset",
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

		meta, err := parseMetadata(datasetMetadata)
		if err != nil {
			return err
		}
		ds, err := svc.CreateDataset(ctx, args[0], optional(datasetDescription), meta)
		if err != nil {
			return err
		}
		cmd.Printf("created dataset %s (%s)\n", ds.Name, handle.Encode(handle.KindDataset, ds.ID))
		return nil
	},
}

var datasetPatchCmd = &cobra.Command{
	Use:   "patch <dataset-id>",
	Short: "Update a dataset's name, description or metadata",
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

		meta, err := parseMetadata(datasetMetadata)
		if err != nil {
			return err
		}
		ds, err := svc.PatchDataset(ctx, args[0], optional(datasetName), optional(datasetDescription), meta)
		if err != nil {
			return err
		}
		cmd.Printf("updated dataset %s\n", ds.Name)
		return nil
	},
}

var datasetDeleteCmd = &cobra.Command{
	Use:   "delete <dataset-id>",
	Short: "Delete a dataset and its entire revision history",
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

		ds, err := svc.DeleteDataset(ctx, args[0])
		if err != nil {
			return err
		}
		cmd.Printf("deleted dataset %s\n", ds.Name)
		return nil
	},
}

var datasetVersionsLimit int

var datasetVersionsCmd = &cobra.Command{
	Use:   "versions <dataset-id>",
	Short: "List a dataset's versions, newest first",
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

		versions, err := svc.ListVersions(ctx, args[0], datasetVersionsLimit)
		if err != nil {
			return err
		}
		for _, v := range versions {
			desc := ""
			if v.Description != nil {
				desc = *v.Description
			}
			cmd.Printf("%s\t%s\t%s\n",
				handle.Encode(handle.KindDatasetVersion, v.ID),
				v.CreatedAt.Format("2006-01-02 15:04:05"),
				desc,
			)
		}
		return nil
	},
}

var datasetExamplesVersion string

var datasetExamplesCmd = &cobra.Command{
	Use:   "examples <dataset-id>",
	Short: "List the latest state of a dataset's examples",
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

		states, err := svc.ListExamples(ctx, args[0], optional(datasetExamplesVersion))
		if err != nil {
			return err
		}
		for _, st := range states {
			input, err := json.Marshal(st.Revision.Input)
			if err != nil {
				return err
			}
			cmd.Printf("%s\t%s\t%s\n",
				handle.Encode(handle.KindDatasetExample, st.ExampleID),
				st.Revision.Kind,
				input,
			)
		}
		return nil
	},
}

func parseMetadata(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var meta map[string]any
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, dataset.BadRequestf("metadata must be a JSON object: %v", err)
	}
	return meta, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func init() {
	datasetCreateCmd.Flags().StringVar(&datasetDescription, "description", "", "dataset description")
	datasetCreateCmd.Flags().StringVar(&datasetMetadata, "metadata", "", "dataset metadata as a JSON object")
	datasetPatchCmd.Flags().StringVar(&datasetName, "name", "", "new dataset name")
	datasetPatchCmd.Flags().StringVar(&datasetDescription, "description", "", "new dataset description")
	datasetPatchCmd.Flags().StringVar(&datasetMetadata, "metadata", "", "replacement metadata as a JSON object")
	datasetVersionsCmd.Flags().IntVar(&datasetVersionsLimit, "limit", 50, "maximum versions to list")
	datasetExamplesCmd.Flags().StringVar(&datasetExamplesVersion, "version", "", "resolve state as of this version id")

	datasetCmd.AddCommand(datasetCreateCmd, datasetPatchCmd, datasetDeleteCmd, datasetVersionsCmd, datasetExamplesCmd)
	rootCmd.AddCommand(datasetCmd)
}
