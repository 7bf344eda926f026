package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"jobmail/internal/app"
	"jobmail/internal/model"
	"jobmail/pkg/mq"
	"jobmail/pkg/outbox"
)

func newIngestCmd() *cobra.Command {
	var (
		token string
		since string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch mail with an access token and run it through the pipeline",
		Long: `Without --since or --limit, messages received after yesterday's date are ingested.
--since takes a YYYY-MM-DD date; --limit ingests the latest N messages.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if since != "" && limit > 0 {
				return fmt.Errorf("--since and --limit are mutually exclusive")
			}
			var sinceAt time.Time
			if since != "" {
				t, err := time.Parse(time.DateOnly, since)
				if err != nil {
					return fmt.Errorf("invalid --since: %w", err)
				}
				sinceAt = t
			}

			ctx := cmd.Context()
			return withApp(ctx, func(a *app.App) error {
				var (
					report *model.BatchReport
					err    error
				)
				switch {
				case limit > 0:
					report, err = a.Ingest.IngestLatest(ctx, token, limit)
				case !sinceAt.IsZero():
					report, err = a.Ingest.IngestSince(ctx, token, sinceAt)
				default:
					report, err = a.Ingest.FetchAndIngest(ctx, token)
				}
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	cmd.Flags().StringVar(&token, "token", os.Getenv("GMAIL_ACCESS_TOKEN"), "Google OAuth access token (default $GMAIL_ACCESS_TOKEN)")
	cmd.Flags().StringVar(&since, "since", "", "ingest messages after this date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 0, "ingest the latest N messages")
	return cmd
}

func newInsertCmd() *cobra.Command {
	var owner, line string
	cmd := &cobra.Command{
		Use:   "insert",
		Short: "Parse one extraction line and store it for an owner",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return withApp(ctx, func(a *app.App) error {
				rec, err := a.Ingest.InsertLine(ctx, owner, line)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), rec)
			}, app.WithoutExtraction())
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner (client) id")
	cmd.Flags().StringVar(&line, "line", "", "comma separated extraction result")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("line")
	return cmd
}

func newStatsCmd() *cobra.Command {
	var (
		owner     string
		recompute bool
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show (or recompute) an owner's application statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return withApp(ctx, func(a *app.App) error {
				if recompute {
					stats, byResult, err := a.StatsSvc.Recompute(ctx, owner)
					if err != nil {
						return err
					}
					return writeJSON(cmd.OutOrStdout(), statsView{AppsByResults: byResult, Statistics: &stats})
				}
				stats, byResult, err := a.StatsSvc.Get(ctx, owner)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), statsView{AppsByResults: byResult, Statistics: stats})
			}, app.WithoutExtraction())
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner (client) id")
	cmd.Flags().BoolVar(&recompute, "recompute", false, "recompute from the applications table before printing")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

type statsView struct {
	AppsByResults model.AppsByResult `json:"apps_by_results"`
	Statistics    *model.Statistics  `json:"statistics"`
}

func newExportCmd() *cobra.Command {
	var owner, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export an owner's applications as CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return withApp(ctx, func(a *app.App) error {
				csv, err := a.Export.ExportCSV(ctx, owner)
				if err != nil {
					return err
				}
				if out == "" || out == "-" {
					_, err = io.WriteString(cmd.OutOrStdout(), csv)
					return err
				}
				return os.WriteFile(out, []byte(csv), 0o644)
			}, app.WithoutExtraction())
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner (client) id")
	cmd.Flags().StringVar(&out, "out", "", "output file (default stdout)")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func newFailuresCmd() *cobra.Command {
	var (
		owner string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "failures",
		Short: "List messages that failed in the pipeline for an owner",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return withApp(ctx, func(a *app.App) error {
				failed, err := a.Failures.ListByOwner(ctx, owner, limit)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), failed)
			}, app.WithoutExtraction())
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner (client) id")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func newOutboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and replay outbox events",
	}

	var (
		eventID int64
		limit   int
	)
	replay := &cobra.Command{
		Use:   "replay",
		Short: "Re-publish one event (--id) or up to --limit failed events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return withApp(ctx, func(a *app.App) error {
				publisher, err := mq.NewPublisher(a.Config.MQ.URL)
				if err != nil {
					return err
				}
				defer publisher.Close()

				d := outbox.NewDispatcher(a.Outbox, publisher, a.Logger).WithMaxRetries(a.Config.Outbox.MaxRetries)
				if eventID > 0 {
					if err := d.Replay(ctx, eventID); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "event %d replayed\n", eventID)
					return nil
				}
				n, err := d.ReplayFailed(ctx, limit)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d failed events replayed\n", n)
				return nil
			}, app.WithoutExtraction())
		},
	}
	replay.Flags().Int64Var(&eventID, "id", 0, "outbox event id")
	replay.Flags().IntVar(&limit, "limit", 100, "maximum failed events to reset")

	cmd.AddCommand(replay)
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
