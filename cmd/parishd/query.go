package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	hierarchy "parishnet/internal/hierarchy/models"
	"parishnet/internal/query/models"
	dErrors "parishnet/pkg/domain-errors"
)

func newQueryCmd() *cobra.Command {
	var role, scope string
	cmd := &cobra.Command{
		Use:   "query <kind> <key>",
		Short: "Run a permission-scoped query as the given caller",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := envFrom(cmd)
			r, err := models.ParseRole(role)
			if err != nil {
				return err
			}
			kind, err := hierarchy.ParseKind(args[0])
			if err != nil {
				return dErrors.New(dErrors.CodeInvalidInput, "unknown target kind")
			}

			a, err := buildApp(cmd.Context(), rt.cfg, rt.logger, rt.metrics)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.query.Query(cmd.Context(), models.Caller{Role: r, ScopeKey: scope}, kind, args[1])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "caller role (individual, community_coordinator, regional_leader, global_coordinator)")
	cmd.Flags().StringVar(&scope, "scope", "", "key of the entity the caller is scoped to")
	_ = cmd.MarkFlagRequired("role")
	_ = cmd.MarkFlagRequired("scope")
	return cmd
}
