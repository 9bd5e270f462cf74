package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/bibliotheca/catalog-service/internal/domain"
	"github.com/bibliotheca/catalog-service/internal/repository"
)

func newSubscribersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "subscribers",
		Aliases: []string{"subs"},
		Short:   "Manage notification subscribers",
	}

	var name, email string
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a subscriber",
		Long: `Register a subscriber. Imports notify every subscriber whose name
appears in the author list of a newly imported article.

Example:
  catalogctl subscribers add --name "Ana Silva" --email ana@example.org`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd.Context(), "subscribers")
			if err != nil {
				return err
			}
			defer e.Close()
			return addSubscriber(cmd.Context(), cmd.OutOrStdout(), repository.NewPgSubscriberRepository(e.db), name, email)
		},
	}
	add.Flags().StringVar(&name, "name", "", "Subscriber name as it appears in author lists (required)")
	add.Flags().StringVar(&email, "email", "", "Notification address (required)")
	_ = add.MarkFlagRequired("name")
	_ = add.MarkFlagRequired("email")

	var jsonOutput bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List subscribers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd.Context(), "subscribers")
			if err != nil {
				return err
			}
			defer e.Close()
			return listSubscribers(cmd.Context(), cmd.OutOrStdout(), repository.NewPgSubscriberRepository(e.db), jsonOutput)
		},
	}
	list.Flags().BoolVar(&jsonOutput, "json", false, "Print subscribers as JSON")

	cmd.AddCommand(add, list)
	return cmd
}

var validate = validator.New()

type subscriberRow struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func addSubscriber(ctx context.Context, out io.Writer, repo repository.SubscriberRepository, name, email string) error {
	sub := &domain.Subscriber{
		Name:  strings.TrimSpace(name),
		Email: strings.TrimSpace(email),
	}
	if err := validate.Var(sub.Name, "required,max=255"); err != nil {
		return domain.NewValidationError("name", "is required and at most 255 characters")
	}
	if err := validate.Var(sub.Email, "required,email,max=320"); err != nil {
		return domain.NewValidationError("email", "must be a valid email address")
	}

	if err := repo.Create(ctx, sub); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "subscriber %d: %s <%s>\n", sub.ID, sub.Name, sub.Email)
	return err
}

func listSubscribers(ctx context.Context, out io.Writer, repo repository.SubscriberRepository, jsonOutput bool) error {
	subs, err := repo.List(ctx)
	if err != nil {
		return err
	}
	if jsonOutput {
		rows := make([]subscriberRow, len(subs))
		for i, s := range subs {
			rows[i] = subscriberRow{ID: s.ID, Name: s.Name, Email: s.Email}
		}
		return writeJSON(out, rows)
	}

	w := &errWriter{w: out}
	if len(subs) == 0 {
		w.printf("no subscribers\n")
		return w.err
	}
	for _, s := range subs {
		w.printf("%6d  %-30s %s\n", s.ID, s.Name, s.Email)
	}
	return w.err
}
