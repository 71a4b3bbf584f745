package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"parishnet/internal/hierarchy/models"
	dErrors "parishnet/pkg/domain-errors"
)

func newRebuildCmd() *cobra.Command {
	var kind, key string
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Recompute snapshots of a subtree and its ancestors from stored records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt := envFrom(cmd)
			k, err := models.ParseKind(kind)
			if err != nil || k == models.KindIndividual {
				return dErrors.New(dErrors.CodeInvalidInput, "kind must be community, region or campaign")
			}

			a, err := buildApp(cmd.Context(), rt.cfg, rt.logger, rt.metrics)
			if err != nil {
				return err
			}
			defer a.Close()

			snap, err := a.network.Rebuild(cmd.Context(), k, key)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "kind of the subtree root (community, region, campaign)")
	cmd.Flags().StringVar(&key, "key", "", "key of the subtree root")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}
