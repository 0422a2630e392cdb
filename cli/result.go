package cli

import (
	"context"
	"errors"

	"github.com/absmach/fedtree/job"
	pkgerrors "github.com/absmach/fedtree/pkg/errors"
	"github.com/absmach/fedtree/pkg/store"
	"github.com/spf13/cobra"
)

type StoreOpener func(ctx context.Context) (store.Store, error)

type resultView struct {
	store.Record
	Log string `json:"log,omitempty"`
}

func NewResultCmd(open StoreOpener) *cobra.Command {
	cmd := cobra.Command{
		Use:   "result <job_id> <server | client>",
		Short: "Show the stored outcome of a job role",
		Long:  ``,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 2 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			st, err := open(cmd.Context())
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			key := store.Key{JobID: args[0], Role: job.Role(args[1])}
			rec, err := st.Get(cmd.Context(), key)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			log, err := st.GetLog(cmd.Context(), key)
			if err != nil && !errors.Is(err, pkgerrors.ErrNotFound) {
				logErrorCmd(*cmd, err)

				return
			}

			logJSONCmd(*cmd, resultView{Record: rec, Log: log})
		},
	}

	return &cmd
}
