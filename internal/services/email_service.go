package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/bastion/internal/models"
	pkglogger "github.com/BradenHooton/bastion/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESNotificationService emails an account holder when their key locks out.
// Strictly fire-and-forget: failures are logged and dropped.
type SESNotificationService struct {
	sesClient   *ses.Client
	fromAddress string
	logger      *slog.Logger
}

// NewSESNotificationService creates a new AWS SES notification service
func NewSESNotificationService(region, fromAddress string, logger *slog.Logger) (*SESNotificationService, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESNotificationService{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		logger:      logger,
	}, nil
}

// NotifyLockout sends a lockout notice to the identifier when it is an email
// address. Non-email identifiers (including the "unknown" fallback key) have
// no mailbox to notify.
func (s *SESNotificationService) NotifyLockout(ctx context.Context, key models.AttemptKey, until time.Time) {
	if !strings.Contains(key.Identifier, "@") {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2>Sign-in temporarily blocked</h2>
        <p>We noticed several failed sign-in attempts to your account.
        Sign-in from the affected location is blocked until
        <strong>%s</strong>.</p>
        <p>If this was you, wait for the block to lift and try again.
        If it wasn't, no action is needed; your password was not accepted.</p>
    </div>
</body>
</html>`, until.UTC().Format(time.RFC1123))

	textBody := fmt.Sprintf(
		"We noticed several failed sign-in attempts to your account. "+
			"Sign-in from the affected location is blocked until %s.",
		until.UTC().Format(time.RFC1123))

	input := &ses.SendEmailInput{
		Source:      aws.String(s.fromAddress),
		Destination: &types.Destination{ToAddresses: []string{key.Identifier}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String("Sign-in attempts blocked")},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(htmlBody)},
				Text: &types.Content{Data: aws.String(textBody)},
			},
		},
	}

	if _, err := s.sesClient.SendEmail(ctx, input); err != nil {
		s.logger.Error("failed to send lockout notification",
			slog.String("identifier", pkglogger.SanitizedEmail(key.Identifier)),
			slog.Any("error", err))
	}
}
