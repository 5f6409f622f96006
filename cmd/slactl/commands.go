package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/luiscanel/service-desk/internal/domain"
	"github.com/luiscanel/service-desk/internal/service"
)

func init() {
	rootCmd.AddCommand(sweepCmd(), seedCmd(), statusCmd(), createAdminCmd())
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Evaluate every open ticket once and raise pending breaches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			container, logger, err := openContainer(cmd.Context())
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			defer container.Close()

			stats, err := container.Sweeper().RunOnce(cmd.Context())
			if err != nil {
				return fmt.Errorf("sweep: %w", err)
			}
			if jsonOutput {
				return printJSON(stats)
			}
			fmt.Printf("evaluated %d tickets, %d breaches raised, %d failures in %s\n",
				stats.Evaluated, stats.Breaches, stats.Failures, stats.Duration.Round(time.Millisecond))
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Install default policies, or upsert policies from a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			container, logger, err := openContainer(cmd.Context())
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			defer container.Close()

			if file == "" {
				created, err := container.Policies.EnsureDefaultPolicies(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("default policies installed: %d\n", created)
				return nil
			}
			created, updated, err := container.Policies.SeedFromFile(cmd.Context(), file)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %d created, %d updated\n", file, created, updated)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML policy file")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <ticket-id>",
		Short: "Show the SLA standing of a ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ticketID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("ticket id %q is not a uuid", args[0])
			}
			container, logger, err := openContainer(cmd.Context())
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			defer container.Close()

			report, err := container.Monitor.GetSlaStatus(cmd.Context(), ticketID.String())
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(report)
			}
			printReport(report)
			return nil
		},
	}
}

func createAdminCmd() *cobra.Command {
	var email, name, password string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv("SLACTL_ADMIN_PASSWORD")
			}
			container, logger, err := openContainer(cmd.Context())
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			defer container.Close()

			staff, err := container.Auth.CreateStaff(cmd.Context(), service.StaffCreateInput{
				Name:     name,
				Email:    email,
				Password: password,
				Role:     domain.StaffRoleAdmin,
			})
			if err != nil {
				return err
			}
			fmt.Printf("admin %s created with id %s\n", staff.Email, staff.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Login e-mail")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&password, "password", "", "Password (or SLACTL_ADMIN_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func printReport(report *service.TicketSlaReport) {
	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	defer w.Flush()

	eval := report.Evaluation
	fmt.Fprintf(w, "ticket\t%s (%s)\n", report.Ticket.ID, report.Ticket.ExternalKey)
	fmt.Fprintf(w, "priority\t%s\n", report.Ticket.Priority)
	fmt.Fprintf(w, "status\t%s\n", eval.Status)
	if report.Policy == nil {
		return
	}
	fmt.Fprintf(w, "policy\t%s (%s)\n", report.Policy.Name, report.Policy.ID)
	fmt.Fprintf(w, "phase\t%s\n", eval.Phase)
	fmt.Fprintf(w, "deadline\t%s\n", eval.Deadline.Format(time.RFC3339))
	if eval.Remaining != nil {
		fmt.Fprintf(w, "remaining\t%s\n", eval.Remaining.Round(time.Second))
	}
	fmt.Fprintf(w, "elapsed\t%.1f%%\n", eval.Percentage)
	for _, b := range report.Breaches {
		fmt.Fprintf(w, "raised\t%s breach\n", b.Phase)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
