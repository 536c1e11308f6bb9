package cli

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/openmuni/cashsync/pkg/models"
)

func newStatusCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the sync state of the local mirror",
		Long:  `Show per-entity row counts and sync states, plus any recorded errors.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := initState(false)
			if err != nil {
				return err
			}
			defer state.close()

			fmt.Printf("%-22s %7s %7s %7s %7s\n", "ENTITY", "ROWS", "CLEAN", "DIRTY", "ERROR")
			for _, entity := range state.session.Registry().Entities() {
				rows, err := state.store.ListByEntity(state.setup.ID, entity)
				if err != nil {
					return err
				}
				if len(rows) == 0 {
					continue
				}
				byState := lo.CountValuesBy(rows, func(r *models.Instance) string {
					return r.State()
				})
				fmt.Printf("%-22s %7d %7d %7d %7d\n", entity, len(rows),
					byState[models.SyncStateClean], byState[models.SyncStateDirty], byState[models.SyncStateError])

				if verbose {
					for _, r := range rows {
						if r.Message == "" {
							continue
						}
						fmt.Printf("  #%d (cId %v): %s\n", r.ID, r.CID, r.Message)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Also print recorded row errors")
	return cmd
}
