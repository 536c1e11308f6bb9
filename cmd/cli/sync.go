package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openmuni/cashsync/pkg/services"
)

func newPullCmd() *cobra.Command {
	var deleteMissing bool

	cmd := &cobra.Command{
		Use:   "pull [entity]",
		Short: "Download remote data into the local mirror",
		Long: `Download the remote organization's data into the local mirror.
With an entity argument only that entity is pulled, otherwise all of them.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := initState(false)
			if err != nil {
				return err
			}
			defer state.close()

			var summaries []*services.PullSummary
			var errs []error
			if len(args) == 1 {
				summary, err := state.session.Load(cmd.Context(), args[0], nil, deleteMissing)
				if err != nil {
					return err
				}
				summaries = append(summaries, summary)
			} else {
				summaries, errs = state.session.LoadAll(cmd.Context(), deleteMissing)
			}

			for _, s := range summaries {
				fmt.Printf("%-22s created=%d updated=%d deleted=%d errors=%d\n",
					s.Entity, s.Created, s.Updated, s.Deleted, len(s.Errors))
			}
			if len(errs) > 0 {
				return fmt.Errorf("pull finished with %d failed entities", len(errs))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&deleteMissing, "delete-missing", false,
		"Delete local rows whose remote counterpart vanished")
	return cmd
}

func newPushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Upload locally changed rows to the remote",
		Long:  `Upload every row flagged for sync. Failures are recorded on the row and retried next time.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := initState(false)
			if err != nil {
				return err
			}
			defer state.close()

			pushed, errs := state.session.PushDirty(cmd.Context())
			fmt.Printf("Pushed %d rows, %d failures\n", pushed, len(errs))
			if len(errs) > 0 {
				return fmt.Errorf("push finished with %d failures", len(errs))
			}
			return nil
		},
	}
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Dispatch local changes to the remote as they happen",
		Long: `Run the change dispatcher until interrupted. Local writes made while
watching are uploaded immediately, local deletes propagate to the remote.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := initState(true)
			if err != nil {
				return err
			}
			defer state.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			dispatcher := services.NewDispatcher(state.session, state.bus)
			log.Info().Str("org", state.setup.Org).Msg("Watching for local changes")
			return dispatcher.Run(ctx)
		},
	}
}
