package main

import (
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/warp/frontdesk/cashdesk"
)

func staffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "staff",
		Short: "Manage the staff directory",
	}
	cmd.AddCommand(staffAddCmd())
	cmd.AddCommand(staffListCmd())
	return cmd
}

func staffAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register or update a staff member",
		RunE:  runStaffAdd,
	}

	cmd.Flags().String("id", "", "staff id (required)")
	cmd.Flags().String("name", "", "display name (required)")
	cmd.Flags().String("role", "staff", "role: staff or manager")
	cmd.Flags().Bool("inactive", false, "register as inactive")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func runStaffAdd(cmd *cobra.Command, _ []string) error {
	id, _ := cmd.Flags().GetString("id")
	name, _ := cmd.Flags().GetString("name")
	roleFlag, _ := cmd.Flags().GetString("role")
	inactive, _ := cmd.Flags().GetBool("inactive")

	role := cashdesk.Role(strings.ToLower(strings.TrimSpace(roleFlag)))
	if role != cashdesk.RoleStaff && role != cashdesk.RoleManager {
		return fmt.Errorf("invalid role %q: must be staff or manager", roleFlag)
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	s := cashdesk.Staff{
		ID:     cashdesk.StaffID(strings.TrimSpace(id)),
		Name:   strings.TrimSpace(name),
		Role:   role,
		Active: !inactive,
	}
	if err := store.SaveStaff(cmd.Context(), s); err != nil {
		return err
	}

	slog.Info("staff saved", "id", s.ID, "name", s.Name, "role", s.Role, "active", s.Active)
	return nil
}

func staffListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the staff directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			staff, err := store.ListStaff(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tROLE\tACTIVE")
			for _, s := range staff {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", s.ID, s.Name, s.Role, s.Active)
			}
			return w.Flush()
		},
	}
}
