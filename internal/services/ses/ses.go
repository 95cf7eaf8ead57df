// Package ses provides email notification services via AWS SES
package ses

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/viniciusnovato/finance-sub000/internal/models"
	"github.com/viniciusnovato/finance-sub000/internal/money"
	"github.com/viniciusnovato/finance-sub000/internal/services/metrics"
	"github.com/viniciusnovato/finance-sub000/internal/utils"
)

// Service sends e-mail through SES from a single verified sender.
type Service struct {
	client    *ses.Client
	fromEmail string
	logger    *zap.Logger
}

// EmailParams represents parameters for sending an email
type EmailParams struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
	ReplyTo  string
}

// OverdueNoticeParams contains data for an overdue installment notice
type OverdueNoticeParams struct {
	ClientName  string
	ClientEmail string
	Items       []OverdueItem
	TotalDue    string
}

// OverdueItem is one overdue installment in a notice
type OverdueItem struct {
	ContractNumber    string
	InstallmentNumber int
	DueDate           string
	DaysOverdue       int
	Amount            string
	Interest          string
	AmountDue         string
}

// SendEmailResult contains the result of sending an email
type SendEmailResult struct {
	MessageID string
	SentAt    time.Time
}

// NewService creates a new SES service
func NewService(ctx context.Context, region, fromEmail string) (*Service, error) {
	if fromEmail == "" {
		return nil, fmt.Errorf("SES sender email is required")
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Service{
		client:    ses.NewFromConfig(cfg),
		fromEmail: fromEmail,
		logger:    utils.Named("ses"),
	}, nil
}

func utf8(data string) *types.Content {
	return &types.Content{Data: aws.String(data), Charset: aws.String("UTF-8")}
}

// SendEmail sends one message. At least one of HTMLBody and TextBody should
// be set.
func (s *Service) SendEmail(ctx context.Context, params EmailParams) (*SendEmailResult, error) {
	body := &types.Body{}
	if params.HTMLBody != "" {
		body.Html = utf8(params.HTMLBody)
	}
	if params.TextBody != "" {
		body.Text = utf8(params.TextBody)
	}

	input := &ses.SendEmailInput{
		Source:      aws.String(s.fromEmail),
		Destination: &types.Destination{ToAddresses: []string{params.To}},
		Message:     &types.Message{Subject: utf8(params.Subject), Body: body},
	}
	if params.ReplyTo != "" {
		input.ReplyToAddresses = []string{params.ReplyTo}
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("Failed to send email", zap.String("to", params.To), zap.Error(err))
		return nil, fmt.Errorf("failed to send email: %w", err)
	}

	messageID := aws.ToString(out.MessageId)
	s.logger.Info("Email sent", zap.String("to", params.To), zap.String("messageId", messageID))

	return &SendEmailResult{MessageID: messageID, SentAt: time.Now()}, nil
}

// SendOverdueNotice sends an overdue installment notice to one client
func (s *Service) SendOverdueNotice(ctx context.Context, params OverdueNoticeParams) (*SendEmailResult, error) {
	htmlBody, err := RenderOverdueNoticeHTML(params)
	if err != nil {
		return nil, fmt.Errorf("failed to render email template: %w", err)
	}

	return s.SendEmail(ctx, EmailParams{
		To:       params.ClientEmail,
		Subject:  OverdueNoticeSubject(params),
		HTMLBody: htmlBody,
		TextBody: RenderOverdueNoticeText(params),
	})
}

// SendBatchOverdueNotices sends notices one by one, collecting failures. A
// cancelled context fails the notices not yet sent.
func (s *Service) SendBatchOverdueNotices(ctx context.Context, notices []OverdueNoticeParams) ([]SendEmailResult, []error) {
	results := make([]SendEmailResult, 0, len(notices))
	var errs []error

	for i, notice := range notices {
		if err := ctx.Err(); err != nil {
			for _, rest := range notices[i:] {
				errs = append(errs, fmt.Errorf("failed to send to %s: %w", rest.ClientEmail, err))
			}
			break
		}

		result, err := s.SendOverdueNotice(ctx, notice)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to send to %s: %w", notice.ClientEmail, err))
			continue
		}
		results = append(results, *result)
	}

	s.logger.Info("Overdue notices batch finished",
		zap.Int("total", len(notices)),
		zap.Int("sent", len(results)),
		zap.Int("failed", len(errs)),
	)
	return results, errs
}

// BuildOverdueNoticeParams creates notice params for one client from its
// overdue installments. Contracts are looked up by ID for their numbers.
func BuildOverdueNoticeParams(client models.Client, contracts map[uuid.UUID]models.Contract, items []metrics.OverdueInstallment) OverdueNoticeParams {
	notice := OverdueNoticeParams{
		ClientName:  client.FullName(),
		ClientEmail: client.Email,
		Items:       make([]OverdueItem, 0, len(items)),
	}

	total := decimal.Zero
	for _, item := range items {
		number := contracts[item.Payment.ContractID].ContractNumber
		notice.Items = append(notice.Items, OverdueItem{
			ContractNumber:    number,
			InstallmentNumber: item.Payment.InstallmentNumber,
			DueDate:           money.FormatDate(item.Payment.DueDate),
			DaysOverdue:       item.DaysOverdue,
			Amount:            money.Format(item.Payment.Amount),
			Interest:          money.Format(item.Interest),
			AmountDue:         money.Format(item.AmountDue),
		})
		total = total.Add(item.AmountDue)
	}
	notice.TotalDue = money.Format(total)

	return notice
}

// OverdueNoticeSubject renders the notice subject line
func OverdueNoticeSubject(params OverdueNoticeParams) string {
	if len(params.Items) == 1 {
		return fmt.Sprintf("%s, you have 1 overdue installment", params.ClientName)
	}
	return fmt.Sprintf("%s, you have %d overdue installments", params.ClientName, len(params.Items))
}

var overdueNoticeTemplate = template.Must(template.New("overdue_notice").Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: #b23b3b; color: white; padding: 30px; border-radius: 10px 10px 0 0; text-align: center; }
        .header h1 { margin: 0; font-size: 24px; }
        .content { background: #f9f9f9; padding: 30px; border-radius: 0 0 10px 10px; }
        table { width: 100%; border-collapse: collapse; background: white; }
        th, td { padding: 8px; border-bottom: 1px solid #eee; text-align: left; font-size: 14px; }
        th { color: #999; font-size: 12px; text-transform: uppercase; }
        .total { text-align: right; font-weight: bold; margin-top: 20px; font-size: 18px; }
        .footer { text-align: center; margin-top: 30px; color: #999; font-size: 12px; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Overdue installments</h1>
        <p>Hi {{.ClientName}}, the following installments are past due</p>
    </div>
    <div class="content">
        <table>
            <tr><th>Contract</th><th>#</th><th>Due date</th><th>Days late</th><th>Amount</th><th>Interest</th><th>Due now</th></tr>
            {{range .Items}}
            <tr>
                <td>{{.ContractNumber}}</td>
                <td>{{.InstallmentNumber}}</td>
                <td>{{.DueDate}}</td>
                <td>{{.DaysOverdue}}</td>
                <td>{{.Amount}}</td>
                <td>{{.Interest}}</td>
                <td>{{.AmountDue}}</td>
            </tr>
            {{end}}
        </table>
        <p class="total">Total due: {{.TotalDue}}</p>
    </div>
    <div class="footer">
        <p>If you have already paid, please disregard this message.</p>
    </div>
</body>
</html>`))

// RenderOverdueNoticeHTML renders the HTML email body
func RenderOverdueNoticeHTML(params OverdueNoticeParams) (string, error) {
	var buf bytes.Buffer
	if err := overdueNoticeTemplate.Execute(&buf, params); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderOverdueNoticeText renders plain text version
func RenderOverdueNoticeText(params OverdueNoticeParams) string {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Hi %s,\n\n", params.ClientName))
	buf.WriteString("The following installments are past due:\n\n")

	for _, item := range params.Items {
		buf.WriteString(fmt.Sprintf("Contract %s, installment %d\n", item.ContractNumber, item.InstallmentNumber))
		buf.WriteString(fmt.Sprintf("   Due date: %s (%d days late)\n", item.DueDate, item.DaysOverdue))
		buf.WriteString(fmt.Sprintf("   Amount: %s + interest %s = %s\n\n", item.Amount, item.Interest, item.AmountDue))
	}

	buf.WriteString(fmt.Sprintf("Total due: %s\n\n", params.TotalDue))
	buf.WriteString("If you have already paid, please disregard this message.\n")

	return buf.String()
}

// GetSendQuota returns the current SES sending quota
func (s *Service) GetSendQuota(ctx context.Context) (*ses.GetSendQuotaOutput, error) {
	result, err := s.client.GetSendQuota(ctx, &ses.GetSendQuotaInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to get send quota: %w", err)
	}
	return result, nil
}
