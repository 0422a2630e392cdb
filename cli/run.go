package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/absmach/fedtree/job"
	"github.com/absmach/fedtree/pkg/dispatch"
	"github.com/spf13/cobra"
)

var (
	errMissingSelf  = errors.New("participant id is required: set --self or participant.id")
	errMissingJobID = errors.New("job id is required: set --job-id to the id shared by all participants")
)

// RegistryOpener builds the operation registry of the local participant.
type RegistryOpener func(ctx context.Context) (*dispatch.Registry, error)

func newRunCmds() []cobra.Command {
	return []cobra.Command{
		{
			Use:   "server <job_description.json>",
			Short: "Run the server role of a training job",
			Long:  "Launches the FedTree server, shares its address with every client and stops it once the first client finishes.",
		},
		{
			Use:   "client <job_description.json>",
			Short: "Run a client role of a training job",
			Long:  "Waits for the server address, then runs the FedTree party to completion.",
		},
	}
}

func NewRunCmd(open RegistryOpener, defaultSelf func() string) *cobra.Command {
	cmd := cobra.Command{
		Use:   "run [server | client]",
		Short: "Run one participant of a training job",
		Long:  ``,
	}

	runCmd := newRunCmds()
	ops := []string{dispatch.OpServer, dispatch.OpClient}
	for i := range runCmd {
		c := &runCmd[i]
		op := ops[i]
		c.Flags().StringP("job-id", "j", "", "Job identifier shared by all participants (required)")
		c.Flags().StringP("self", "s", "", "User id of the local participant (configured participant id when empty)")
		c.Args = cobra.ExactArgs(1)
		// Failures are returned so the process exits non-zero.
		c.RunE = func(cmd *cobra.Command, args []string) error {
			inv, err := invocation(cmd, args[0], defaultSelf())
			if err != nil {
				return err
			}

			r, err := open(cmd.Context())
			if err != nil {
				return err
			}

			out, err := r.Dispatch(cmd.Context(), op, inv)
			if err != nil {
				return err
			}
			logRawJSONCmd(*cmd, out)

			return nil
		}
		cmd.AddCommand(c)
	}

	return &cmd
}

func invocation(cmd *cobra.Command, path, defaultSelf string) (job.Invocation, error) {
	param, err := os.ReadFile(path)
	if err != nil {
		return job.Invocation{}, fmt.Errorf("failed to read job description: %w", err)
	}

	desc, err := job.Parse(param)
	if err != nil {
		return job.Invocation{}, err
	}

	jobID, _ := cmd.Flags().GetString("job-id")
	if jobID == "" {
		return job.Invocation{}, errMissingJobID
	}

	self, _ := cmd.Flags().GetString("self")
	if self == "" {
		self = defaultSelf
	}
	if self == "" {
		return job.Invocation{}, errMissingSelf
	}

	return job.Invocation{
		JobID:        jobID,
		Param:        param,
		Participants: desc.Participants(),
		Self:         self,
	}, nil
}
