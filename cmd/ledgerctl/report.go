package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/viniciusnovato/finance-sub000/internal/handlers"
	"github.com/viniciusnovato/finance-sub000/internal/services/backoffice"
	"github.com/viniciusnovato/finance-sub000/internal/services/ses"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print or export back office reports",
	}

	var periodDays int
	var export bool
	dashboard := &cobra.Command{
		Use:   "dashboard",
		Short: "Print the dashboard, or export it to the report bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, backend, err := loadBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer backend.Close()

			if export {
				result, err := backend.Service.ExportDashboard(cmd.Context(), periodDays)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			}

			report, err := backend.Service.Dashboard(cmd.Context(), periodDays)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	dashboard.Flags().IntVar(&periodDays, "period", 0, "period in days (default from REPORT_PERIOD_DAYS)")
	dashboard.Flags().BoolVar(&export, "export", false, "upload to S3_REPORT_BUCKET and print a download link")

	var months int
	revenue := &cobra.Command{
		Use:   "revenue",
		Short: "Print collected revenue per month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if months < 1 || months > backoffice.MaxRevenueMonths {
				return fmt.Errorf("--months must be between 1 and %d", backoffice.MaxRevenueMonths)
			}

			_, backend, err := loadBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer backend.Close()

			rows, err := backend.Service.MonthlyRevenue(cmd.Context(), months)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rows)
		},
	}
	revenue.Flags().IntVar(&months, "months", 12, "number of calendar months")

	overdue := &cobra.Command{
		Use:   "overdue",
		Short: "Print overdue installments with late interest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, backend, err := loadBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer backend.Close()

			items, err := backend.Service.OverdueInstallments(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), items)
		},
	}

	cmd.AddCommand(dashboard, revenue, overdue)
	return cmd
}

func newNotifyOverdueCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "notify-overdue",
		Short: "Email overdue notices to clients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, backend, err := loadBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer backend.Close()

			var sender handlers.NoticeSender
			if !dryRun {
				sesSvc, err := ses.NewService(cmd.Context(), cfg.AWSRegion, cfg.SESSenderEmail)
				if err != nil {
					return err
				}
				sender = sesSvc
			}

			result, err := handlers.NewOverdueNotifierHandlerWith(backend.Service, sender).
				Run(cmd.Context(), handlers.NotifierRequest{DryRun: dryRun})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "build notices without sending")
	return cmd
}
