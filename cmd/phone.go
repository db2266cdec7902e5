package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/tanpawarit/remibot/agent/catalog"
	contractx "github.com/tanpawarit/remibot/agent/contract"
	"github.com/tanpawarit/remibot/agent/directory"
)

type phoneBackend interface {
	catalog.Reader
	catalog.PhoneStore
}

func newPhoneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "phone",
		Short: "Manage phone numbers authorized per organization",
	}
	cmd.AddCommand(newPhoneAddCmd())
	cmd.AddCommand(newPhoneCheckCmd())
	return cmd
}

func newPhoneAddCmd() *cobra.Command {
	var orgID, notes string

	cmd := &cobra.Command{
		Use:   "add <number>",
		Short: "Authorize a phone number for an organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}
			db, err := openDB(cmd.Context(), s)
			if err != nil {
				return err
			}
			defer db.Close()
			return addPhone(cmd.Context(), cmd.OutOrStdout(), catalog.NewPostgresStore(db), args[0], orgID, notes)
		},
	}

	cmd.Flags().StringVar(&orgID, "org", "", "organization id")
	cmd.Flags().StringVar(&notes, "notes", "", "free text notes")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}

func newPhoneCheckCmd() *cobra.Command {
	var countryCode string

	cmd := &cobra.Command{
		Use:   "check <number>",
		Short: "Show which organizations a number resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}
			if countryCode == "" {
				countryCode = s.App.CountryCode
			}
			db, err := openDB(cmd.Context(), s)
			if err != nil {
				return err
			}
			defer db.Close()
			return checkPhone(cmd.Context(), cmd.OutOrStdout(), catalog.NewPostgresStore(db), args[0], countryCode)
		},
	}

	cmd.Flags().StringVar(&countryCode, "country-code", "", "country code tried with and without (default APP_COUNTRY_CODE)")
	return cmd
}

func addPhone(ctx context.Context, out io.Writer, store phoneBackend, number, orgID, notes string) error {
	orgID = strings.TrimSpace(orgID)
	normalized := directory.Normalize(number)
	if normalized == "" {
		return fmt.Errorf("%w: %q has no digits", contractx.ErrValidation, number)
	}

	org, err := store.Organization(ctx, orgID)
	if err != nil {
		return fmt.Errorf("organization %s: %w", orgID, err)
	}

	err = store.AddPhone(ctx, &catalog.Phone{
		ID:             uuid.NewString(),
		Number:         strings.TrimSpace(number),
		Normalized:     normalized,
		OrganizationID: org.ID,
		Active:         true,
		Notes:          strings.TrimSpace(notes),
	})
	if errors.Is(err, contractx.ErrDuplicateKey) {
		fmt.Fprintf(out, "%s %s is already authorized for %s\n", color.New(color.FgYellow).Sprint("!"), normalized, org.Name)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s %s authorized for %s\n", color.New(color.FgGreen).Sprint("✓"), normalized, org.Name)
	return nil
}

func checkPhone(ctx context.Context, out io.Writer, store phoneBackend, number, countryCode string) error {
	dir, err := directory.New(store, directory.WithCountryCode(countryCode))
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Candidates: %s\n", strings.Join(dir.Candidates(number), ", "))
	ids, err := dir.Resolve(ctx, number)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Fprintf(out, "%s not registered\n", color.New(color.FgRed).Sprint("✗"))
		return nil
	}
	for _, id := range ids {
		name := color.New(color.FgYellow).Sprint("(unknown organization)")
		if org, err := store.Organization(ctx, id); err == nil {
			name = org.Name
		}
		fmt.Fprintf(out, "%s %s (ID: %s)\n", color.New(color.FgGreen).Sprint("✓"), name, id)
	}
	return nil
}
