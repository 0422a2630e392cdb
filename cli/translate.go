package cli

import (
	"fmt"
	"os"

	"github.com/absmach/fedtree/job"
	"github.com/absmach/fedtree/pkg/participant"
	"github.com/absmach/fedtree/pkg/roleconf"
	"github.com/spf13/cobra"
)

func NewTranslateCmd(catalog func() roleconf.Catalog) *cobra.Command {
	cmd := cobra.Command{
		Use:   "translate <job_description.json>",
		Short: "Print the FedTree configuration of a role",
		Long:  `Renders the key=value configuration the server or a client binary would receive, without the server address.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			param, err := os.ReadFile(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			desc, err := job.Parse(param)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			role, _ := cmd.Flags().GetString("role")
			index, _ := cmd.Flags().GetInt("index")
			if self, _ := cmd.Flags().GetString("self"); self != "" {
				view, err := participant.Resolve(desc.Participants(), self)
				if err != nil {
					logErrorCmd(*cmd, err)

					return
				}
				role, index = string(view.Role), view.Index
			}

			conf, err := roleconf.Translate(desc, job.Role(role), index, catalog())
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			fmt.Fprint(cmd.OutOrStdout(), conf.Render())
		},
	}

	cmd.Flags().StringP("role", "r", string(job.RoleServer), "Role to translate for: server or client")
	cmd.Flags().IntP("index", "i", 0, "Client index")
	cmd.Flags().StringP("self", "s", "", "Participant user id; overrides role and index")

	return &cmd
}
