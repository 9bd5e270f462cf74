package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/bibliotheca/catalog-service/internal/repository"
)

func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect catalog events",
	}

	var filter repository.EventFilter
	list := &cobra.Command{
		Use:   "list",
		Short: "List events by name",
		Long: `List events ordered by name. Imports only attach articles to events
that already exist, so check here before importing.

Examples:
  catalogctl events list
  catalogctl events list --query sbes --limit 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd.Context(), "events")
			if err != nil {
				return err
			}
			defer e.Close()
			return listEvents(cmd.Context(), cmd.OutOrStdout(), repository.NewPgEventRepository(e.db), filter)
		},
	}
	list.Flags().StringVarP(&filter.Query, "query", "q", "", "Match name or acronym")
	list.Flags().IntVar(&filter.Limit, "limit", 100, "Maximum events to print")
	list.Flags().IntVar(&filter.Offset, "offset", 0, "Events to skip")

	cmd.AddCommand(list)
	return cmd
}

func listEvents(ctx context.Context, out io.Writer, repo repository.EventRepository, filter repository.EventFilter) error {
	events, total, err := repo.List(ctx, filter)
	if err != nil {
		return err
	}

	w := &errWriter{w: out}
	w.printf("%d events (showing %d)\n", total, len(events))
	for _, ev := range events {
		w.printf("%6d  %-12s %s\n", ev.ID, ev.Acronym, ev.Name)
	}
	return w.err
}
