package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nsyte-agents/auction-sync/internal/mailparse"
	"github.com/nsyte-agents/auction-sync/internal/model"
	"github.com/nsyte-agents/auction-sync/pkg/gmail"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect sale-outcome emails and reconcile them into the store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		rec, err := initReconciler(ctx, st)
		if err != nil {
			return err
		}

		client := gmail.NewClient(cfg.Gmail.Token, gmail.WithPageSize(cfg.Gmail.PageSize))

		ids, err := client.ListUnread(ctx, cfg.Gmail.Query)
		if err != nil {
			return err
		}

		run, err := st.StartRun(ctx, model.RunKindCollect)
		if err != nil {
			return err
		}

		var ingested, rejected, skipped int
		var runErr error

		for _, id := range ids {
			done, err := st.MessageProcessed(ctx, id)
			if err != nil {
				runErr = err
				break
			}
			if done {
				skipped++
				continue
			}

			meta, err := client.FetchMeta(ctx, id)
			if err != nil {
				runErr = err
				break
			}
			body, err := client.FetchBody(ctx, id)
			if err != nil {
				runErr = err
				break
			}

			event := mailparse.ParseMessage(mailparse.Message{
				ID:       id,
				Subject:  meta.Subject,
				Body:     body,
				Received: meta.Received,
			})

			switch {
			case event == nil:
				skipped++
				zap.L().Debug("unrecognized message subject",
					zap.String("message_id", id),
					zap.String("subject", meta.Subject),
				)
			case event.Outcome != nil:
				if err := rec.IngestOutcome(*event.Outcome); err != nil {
					rejected++
					zap.L().Warn("outcome rejected",
						zap.String("message_id", id),
						zap.String("property_id", event.Outcome.PropertyID),
						zap.Error(err),
					)
				} else {
					ingested++
				}
			case event.Removal != nil:
				if err := rec.IngestListing(*event.Removal); err != nil {
					rejected++
					zap.L().Warn("removal rejected",
						zap.String("message_id", id),
						zap.String("property_id", event.Removal.PropertyID),
						zap.Error(err),
					)
				} else {
					ingested++
				}
			}

			// Rejected messages are remembered too: a contradictory email
			// stays contradictory no matter how often it is refetched.
			if err := st.MarkMessageProcessed(ctx, id); err != nil {
				runErr = err
				break
			}
			if cfg.Gmail.MarkRead {
				if err := client.MarkRead(ctx, id); err != nil {
					zap.L().Warn("mark read failed", zap.String("message_id", id), zap.Error(err))
				}
			}
		}

		if runErr == nil {
			runErr = st.UpsertRows(ctx, rec.Rows())
		}

		if err := st.FinishRun(ctx, run.ID, ingested, rejected, runErr); err != nil {
			zap.L().Error("record run result", zap.Error(err))
		}
		if runErr != nil {
			return runErr
		}

		fmt.Fprintf(os.Stderr, "Collected %d messages: %d ingested, %d rejected, %d skipped\n",
			len(ids), ingested, rejected, skipped)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(collectCmd)
}
