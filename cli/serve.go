package cli

import (
	"context"

	"github.com/spf13/cobra"
)

func NewServeCmd(serve func(ctx context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve stored results, health and metrics over HTTP",
		Long:  ``,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}
