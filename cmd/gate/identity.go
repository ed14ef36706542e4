package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/service"
	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/store"
	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/types"
)

func newIdentityCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "identity",
		Aliases: []string{"identities", "id"},
		Short:   "Manage enrolled identities",
	}
	cmd.AddCommand(
		newIdentityAddCmd(a),
		newIdentityListCmd(a),
		newIdentityShowCmd(a),
		newIdentityRemoveCmd(a),
		newIdentityQRCmd(a),
		newIdentityImportCmd(a),
	)
	return cmd
}

func addProfileFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("name", "", "display name")
	f.String("department", "", "department")
	f.String("year", "", "year of study")
	f.String("phone", "", "phone number")
	f.String("email", "", "email address")
	f.String("status", store.StatusActive, "enrollment status")
}

func profileFromFlags(cmd *cobra.Command, id string) types.IdentityRequest {
	return types.IdentityRequest{
		IdentityID:  id,
		DisplayName: mustGetString(cmd, "name"),
		Department:  mustGetString(cmd, "department"),
		Year:        mustGetString(cmd, "year"),
		Phone:       mustGetString(cmd, "phone"),
		Email:       mustGetString(cmd, "email"),
		Status:      mustGetString(cmd, "status"),
	}
}

func newIdentityAddCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <identity-id>",
		Short: "Enroll a new identity",
		Example: `  gate identity add S1001 --name "Ada Lovelace" --department Mathematics --year 2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.openBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			id, err := a.identityService(b).Create(cmd.Context(), profileFromFlags(cmd, args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enrolled %s (%s)\n", id.IdentityID, id.DisplayName)
			return nil
		},
	}
	addProfileFlags(cmd)
	return cmd
}

func newIdentityListCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List identities, optionally filtered by id or name",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.openBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			ids, err := a.identityService(b).List(cmd.Context(), mustGetString(cmd, "search"))
			if err != nil {
				return err
			}
			if mustGetBool(cmd, "csv") {
				return service.WriteIdentitiesCSV(cmd.OutOrStdout(), ids)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tDEPARTMENT\tYEAR\tSTATUS\tFACE")
			for _, id := range ids {
				face := "-"
				if id.HasDescriptor() {
					face = "yes"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", id.IdentityID, id.DisplayName, id.Department, id.Year, id.Status, face)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringP("search", "q", "", "search by id or name")
	cmd.Flags().Bool("csv", false, "write CSV instead of a table")
	return cmd
}

func newIdentityShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <identity-id>",
		Short: "Show one identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.openBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			id, err := a.identityService(b).Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "ID\t%s\n", id.IdentityID)
			fmt.Fprintf(tw, "Name\t%s\n", id.DisplayName)
			fmt.Fprintf(tw, "Department\t%s\n", id.Department)
			fmt.Fprintf(tw, "Year\t%s\n", id.Year)
			fmt.Fprintf(tw, "Phone\t%s\n", id.Phone)
			fmt.Fprintf(tw, "Email\t%s\n", id.Email)
			fmt.Fprintf(tw, "Status\t%s\n", id.Status)
			fmt.Fprintf(tw, "Face enrolled\t%t\n", id.HasDescriptor())
			fmt.Fprintf(tw, "Registered\t%s\n", id.RegisteredAt.Local().Format("2006-01-02 15:04:05"))
			return tw.Flush()
		},
	}
}

func newIdentityRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <identity-id>",
		Aliases: []string{"rm"},
		Short:   "Delete an identity; its sessions stay in the log",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.openBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			if err := a.identityService(b).Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		},
	}
}

func newIdentityQRCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "qr <identity-id>",
		Short: "Write the identity's QR badge as PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.openBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			png, err := a.identityService(b).QRCode(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := mustGetString(cmd, "out")
			if out == "" {
				out = args[0] + ".png"
			}
			if err := os.WriteFile(out, png, 0o644); err != nil {
				return fmt.Errorf("write badge: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringP("out", "o", "", "output file (default <identity-id>.png)")
	return cmd
}

func newIdentityImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <roster.yaml>",
		Short: "Create or update identities from a YAML roster",
		Long: `Import a YAML roster. New ids are enrolled, existing ids have their
profile replaced. Face descriptors are not part of the roster.

  identities:
    - id: S1001
      name: Ada Lovelace
      department: Mathematics
      year: "2"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			roster, err := service.ParseRoster(f)
			if err != nil {
				return err
			}
			if len(roster) == 0 {
				return errors.New("roster has no identities")
			}

			b, err := a.openBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			bar := progressbar.NewOptions(len(roster),
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionSetDescription("Importing roster"),
				progressbar.OptionShowCount(),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionFullWidth(),
			)
			res, err := a.identityService(b).Import(cmd.Context(), roster, func() { _ = bar.Add(1) })
			_ = bar.Finish()
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "created %d, updated %d, failed %d\n", res.Created, res.Updated, len(res.Failed))
			keys := make([]string, 0, len(res.Failed))
			for k := range res.Failed {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(out, "  %s: %v\n", k, res.Failed[k])
			}
			if len(res.Failed) > 0 {
				return fmt.Errorf("%d roster entries failed", len(res.Failed))
			}
			return nil
		},
	}
}
