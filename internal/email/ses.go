package email

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/motheroflaunch/backend/internal/logger"
	"github.com/motheroflaunch/backend/internal/metrics"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Template names, used as metric labels
const (
	TemplateToolApproved  = "tool_approved"
	TemplateToolRejected  = "tool_rejected"
	TemplateBlogPublished = "blog_published"
	TemplateLaunchResults = "launch_results"
)

// Mailer sends the transactional emails the API produces
type Mailer interface {
	SendToolApproved(ctx context.Context, to, toolName, toolSlug string) error
	SendToolRejected(ctx context.Context, to, toolName, reason string) error
	SendBlogPublished(ctx context.Context, to, title, blogSlug string) error
	SendLaunchResults(ctx context.Context, to, toolName, date string, rank, votes int) error
}

type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// EmailService handles sending emails via AWS SES behind a circuit breaker
type EmailService struct {
	client    sesAPI
	cb        *gobreaker.CircuitBreaker[*ses.SendEmailOutput]
	fromEmail string
	fromName  string
	baseURL   string
}

// NewEmailService creates a new email service using AWS SES
func NewEmailService(ctx context.Context, region, fromEmail, fromName, baseURL string) (*EmailService, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return newEmailService(ses.NewFromConfig(cfg), fromEmail, fromName, baseURL), nil
}

func newEmailService(client sesAPI, fromEmail, fromName, baseURL string) *EmailService {
	cb := gobreaker.NewCircuitBreaker[*ses.SendEmailOutput](gobreaker.Settings{
		Name:        "ses",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Log.Warn("Email circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &EmailService{
		client:    client,
		cb:        cb,
		fromEmail: fromEmail,
		fromName:  fromName,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
	}
}

// SendToolApproved tells a maker their tool is live in the catalog
func (e *EmailService) SendToolApproved(ctx context.Context, to, toolName, toolSlug string) error {
	link := fmt.Sprintf("%s/tools/%s", e.baseURL, toolSlug)
	return e.send(ctx, TemplateToolApproved, to,
		fmt.Sprintf("%s was approved", toolName),
		fmt.Sprintf("Good news: <strong>%s</strong> is now listed. You can book a launch day from your dashboard.", html.EscapeString(toolName)),
		link, "View your tool",
	)
}

// SendToolRejected tells a maker why their submission was declined
func (e *EmailService) SendToolRejected(ctx context.Context, to, toolName, reason string) error {
	body := fmt.Sprintf("Your submission <strong>%s</strong> was not approved.", html.EscapeString(toolName))
	if reason != "" {
		body += fmt.Sprintf("<br>Reason: %s", html.EscapeString(reason))
	}
	return e.send(ctx, TemplateToolRejected, to,
		fmt.Sprintf("Update on %s", toolName),
		body,
		e.baseURL+"/dashboard/tools", "Edit and resubmit",
	)
}

// SendBlogPublished tells an author their post is public
func (e *EmailService) SendBlogPublished(ctx context.Context, to, title, blogSlug string) error {
	return e.send(ctx, TemplateBlogPublished, to,
		"Your post is live",
		fmt.Sprintf("<strong>%s</strong> has been published.", html.EscapeString(title)),
		fmt.Sprintf("%s/blog/%s", e.baseURL, blogSlug), "Read it",
	)
}

// SendLaunchResults reports the final rank of a launch day
func (e *EmailService) SendLaunchResults(ctx context.Context, to, toolName, date string, rank, votes int) error {
	return e.send(ctx, TemplateLaunchResults, to,
		fmt.Sprintf("%s finished #%d on %s", toolName, rank, date),
		fmt.Sprintf("<strong>%s</strong> finished the %s launch at rank #%d with %d votes.", html.EscapeString(toolName), date, rank, votes),
		fmt.Sprintf("%s/launches/%s", e.baseURL, date), "See the full results",
	)
}

func (e *EmailService) send(ctx context.Context, template, to, subject, bodyHTML, link, linkText string) error {
	from := e.fromEmail
	if e.fromName != "" {
		from = fmt.Sprintf("%s <%s>", e.fromName, e.fromEmail)
	}

	htmlBody := renderHTML(subject, bodyHTML, link, linkText)
	textBody := fmt.Sprintf("%s\n\n%s\n\n%s: %s\n", subject, stripTags(bodyHTML), linkText, link)

	input := &ses.SendEmailInput{
		Source:      aws.String(from),
		Destination: &types.Destination{ToAddresses: []string{to}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(htmlBody), Charset: aws.String("UTF-8")},
				Text: &types.Content{Data: aws.String(textBody), Charset: aws.String("UTF-8")},
			},
		},
	}

	_, err := e.cb.Execute(func() (*ses.SendEmailOutput, error) {
		return e.client.SendEmail(ctx, input)
	})

	result := metrics.Result(err)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		result = "rejected"
	}
	metrics.Get().EmailsTotal.WithLabelValues(template, result).Inc()

	if err != nil {
		return fmt.Errorf("failed to send %s email: %w", template, err)
	}
	return nil
}

func renderHTML(heading, body, link, linkText string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333;">
	<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
		<h1>%s</h1>
		<p>%s</p>
		<a href="%s" style="display: inline-block; padding: 12px 24px; background-color: #ff6b35; color: white; text-decoration: none; border-radius: 6px;">%s</a>
		<hr>
		<p style="color: #999; font-size: 12px;">This is an automated message from Mother of Launch.</p>
	</div>
</body>
</html>`, html.EscapeString(heading), body, html.EscapeString(link), html.EscapeString(linkText))
}

func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return html.UnescapeString(b.String())
}

// NoopMailer logs instead of sending. It is used when SES is not configured.
type NoopMailer struct{}

func (NoopMailer) SendToolApproved(_ context.Context, to, toolName, _ string) error {
	logger.Log.Debug("Email disabled, skipping tool approved", zap.String("to", to), zap.String("tool", toolName))
	return nil
}

func (NoopMailer) SendToolRejected(_ context.Context, to, toolName, _ string) error {
	logger.Log.Debug("Email disabled, skipping tool rejected", zap.String("to", to), zap.String("tool", toolName))
	return nil
}

func (NoopMailer) SendBlogPublished(_ context.Context, to, title, _ string) error {
	logger.Log.Debug("Email disabled, skipping blog published", zap.String("to", to), zap.String("title", title))
	return nil
}

func (NoopMailer) SendLaunchResults(_ context.Context, to, toolName, date string, _, _ int) error {
	logger.Log.Debug("Email disabled, skipping launch results", zap.String("to", to), zap.String("tool", toolName), zap.String("date", date))
	return nil
}

// SendAsync runs fn in the background with its own timeout. Failures are
// logged and never reach the request that triggered the email.
func SendAsync(template string, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := fn(ctx); err != nil {
			logger.Log.Warn("Failed to send email", zap.String("template", template), zap.Error(err))
		}
	}()
}

var (
	_ Mailer = (*EmailService)(nil)
	_ Mailer = NoopMailer{}
)
