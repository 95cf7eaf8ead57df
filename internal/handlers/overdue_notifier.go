package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"

	appConfig "github.com/viniciusnovato/finance-sub000/internal/config"
	"github.com/viniciusnovato/finance-sub000/internal/services/backoffice"
	"github.com/viniciusnovato/finance-sub000/internal/services/ses"
	"github.com/viniciusnovato/finance-sub000/internal/utils"
)

// OverdueSource lists overdue installments grouped by client.
type OverdueSource interface {
	OverdueByClient(ctx context.Context) ([]backoffice.ClientOverdue, error)
}

// NoticeSender delivers overdue notices.
type NoticeSender interface {
	SendBatchOverdueNotices(ctx context.Context, notices []ses.OverdueNoticeParams) ([]ses.SendEmailResult, []error)
}

// OverdueNotifierHandler emails every client with overdue installments. It
// runs on a schedule.
type OverdueNotifierHandler struct {
	source  OverdueSource
	sender  NoticeSender
	backend *Backend
}

// NewOverdueNotifierHandler creates the handler from environment configuration.
func NewOverdueNotifierHandler(ctx context.Context) (*OverdueNotifierHandler, error) {
	cfg, err := appConfig.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load app config: %w", err)
	}

	sender, err := ses.NewService(ctx, cfg.AWSRegion, cfg.SESSenderEmail)
	if err != nil {
		return nil, err
	}

	backend, err := NewBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &OverdueNotifierHandler{source: backend.Service, sender: sender, backend: backend}, nil
}

// NewOverdueNotifierHandlerWith creates a handler over explicit dependencies.
func NewOverdueNotifierHandlerWith(source OverdueSource, sender NoticeSender) *OverdueNotifierHandler {
	return &OverdueNotifierHandler{source: source, sender: sender}
}

// NotifierRequest is the optional detail of the triggering event.
type NotifierRequest struct {
	DryRun bool `json:"dry_run"`
}

// NotifierResult summarizes one notifier run.
type NotifierResult struct {
	Message        string   `json:"message"`
	Clients        int      `json:"clients"`
	Sent           int      `json:"sent"`
	SkippedNoEmail int      `json:"skipped_no_email"`
	Failed         int      `json:"failed"`
	Errors         []string `json:"errors,omitempty"`
	DryRun         bool     `json:"dry_run"`
}

// Handle runs the notifier for a scheduled event. The event detail may carry
// a NotifierRequest.
func (h *OverdueNotifierHandler) Handle(ctx context.Context, event events.CloudWatchEvent) (NotifierResult, error) {
	var req NotifierRequest
	if len(event.Detail) > 0 {
		if err := json.Unmarshal(event.Detail, &req); err != nil {
			utils.Named("overdue-notifier").Warn("Ignoring unreadable event detail", utils.Error(err))
		}
	}
	return h.Run(ctx, req)
}

// Run builds one notice per client with an email address and sends them. A
// dry run builds the notices without sending.
func (h *OverdueNotifierHandler) Run(ctx context.Context, req NotifierRequest) (NotifierResult, error) {
	logger := utils.Named("overdue-notifier")

	groups, err := h.source.OverdueByClient(ctx)
	if err != nil {
		return NotifierResult{}, fmt.Errorf("failed to load overdue installments: %w", err)
	}

	result := NotifierResult{Clients: len(groups), DryRun: req.DryRun}
	notices := make([]ses.OverdueNoticeParams, 0, len(groups))
	for _, group := range groups {
		if group.Client.Email == "" {
			result.SkippedNoEmail++
			continue
		}
		notices = append(notices, ses.BuildOverdueNoticeParams(group.Client, group.Contracts, group.Items))
	}

	if req.DryRun || len(notices) == 0 {
		result.Message = fmt.Sprintf("%d notice(s) prepared", len(notices))
		logger.Info("Overdue notifier finished without sending",
			utils.Int("clients", result.Clients),
			utils.Int("notices", len(notices)),
			utils.Bool("dryRun", req.DryRun),
		)
		return result, nil
	}

	sent, errs := h.sender.SendBatchOverdueNotices(ctx, notices)
	result.Sent = len(sent)
	result.Failed = len(errs)
	for _, e := range errs {
		result.Errors = append(result.Errors, e.Error())
	}
	result.Message = fmt.Sprintf("Sent %d of %d notice(s)", result.Sent, len(notices))

	logger.Info("Overdue notices sent",
		utils.Int("clients", result.Clients),
		utils.Int("sent", result.Sent),
		utils.Int("failed", result.Failed),
	)
	return result, nil
}

// Close cleans up resources.
func (h *OverdueNotifierHandler) Close() {
	h.backend.Close()
}
