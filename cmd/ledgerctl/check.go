package main

import (
	"fmt"
	"io"
	"time"

	sesapi "github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/spf13/cobra"

	"github.com/viniciusnovato/finance-sub000/internal/config"
	"github.com/viniciusnovato/finance-sub000/internal/services/cache"
	"github.com/viniciusnovato/finance-sub000/internal/services/database"
	"github.com/viniciusnovato/finance-sub000/internal/services/ses"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check configuration and connectivity to PostgreSQL, Redis and SES",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			ctx := cmd.Context()
			failed := false

			fmt.Fprintln(out, "Configuration")
			for _, setting := range []struct{ name, value string }{
				{"AWS_REGION", cfg.AWSRegion},
				{"S3_IMPORT_BUCKET", cfg.S3ImportBucket},
				{"S3_REPORT_BUCKET", cfg.S3ReportBucket},
				{"SES_SENDER_EMAIL", cfg.SESSenderEmail},
				{"REDIS_ADDR", cfg.RedisAddr},
				{"JWT_SECRET", mask(cfg.JWTSecret)},
				{"STAGE", cfg.Stage},
			} {
				report(out, setting.name, setting.value != "", setting.value)
			}

			fmt.Fprintln(out, "Connectivity")
			if cfg.HasDatabase() {
				db, err := database.New(cfg)
				if err != nil {
					report(out, "postgres", false, err.Error())
					failed = true
				} else {
					counts, err := db.TableCounts(ctx)
					if err != nil {
						report(out, "postgres", false, "connected, schema missing: run ledgerctl migrate")
						failed = true
					} else {
						report(out, "postgres", true, fmt.Sprintf("clients=%d contracts=%d payments=%d",
							counts["clients"], counts["contracts"], counts["payments"]))
					}
					db.Close()
				}
			} else {
				report(out, "postgres", false, "not configured")
			}

			if cfg.RedisAddr != "" {
				rc := cache.Connect(ctx, cfg)
				report(out, "redis", rc != nil, cfg.RedisAddr)
				_ = rc.Close()
			} else {
				report(out, "redis", false, "not configured, report caching disabled")
			}

			if cfg.SESSenderEmail != "" {
				sesSvc, err := ses.NewService(ctx, cfg.AWSRegion, cfg.SESSenderEmail)
				if err == nil {
					var q *sesapi.GetSendQuotaOutput
					if q, err = sesSvc.GetSendQuota(ctx); err == nil {
						report(out, "ses", true, fmt.Sprintf("sent %.0f of %.0f in the last 24h", q.SentLast24Hours, q.Max24HourSend))
					}
				}
				if err != nil {
					report(out, "ses", false, err.Error())
					failed = true
				}
			} else {
				report(out, "ses", false, "not configured, overdue notices disabled")
			}

			fmt.Fprintf(out, "Checked at %s\n", time.Now().UTC().Format(time.RFC3339))
			if failed {
				return fmt.Errorf("one or more checks failed")
			}
			return nil
		},
	}
}

func report(out io.Writer, name string, ok bool, detail string) {
	mark := "ok  "
	if !ok {
		mark = "--  "
	}
	fmt.Fprintf(out, "  %s%-18s %s\n", mark, name, detail)
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "set"
}
