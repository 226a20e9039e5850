package services

import (
	"context"
	"fmt"
	"html"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/dimitrije/listshub-api/internal/config"
	log "github.com/sirupsen/logrus"
)

// Mailer sends the transactional mail the membership flows need.
type Mailer interface {
	SendFamilyInvite(ctx context.Context, to, familyName, inviterName, inviteURL, code string) error
	SendPasswordReset(ctx context.Context, to, name, resetURL string) error
}

// SESClient is the part of *sesv2.Client used for sending.
type SESClient interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type EmailService struct {
	client    SESClient
	fromEmail string
	fromName  string
}

// NewEmailService returns a disabled service when no sender address is set.
func NewEmailService(ctx context.Context, cfg config.SESConfig) (*EmailService, error) {
	if cfg.FromEmail == "" {
		log.Info("email disabled: SES_FROM_EMAIL not configured")
		return &EmailService{}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	log.WithFields(log.Fields{"from": cfg.FromEmail, "region": cfg.Region}).Info("email enabled")
	return NewEmailServiceWithClient(sesv2.NewFromConfig(awsCfg), cfg.FromEmail, cfg.FromName), nil
}

func NewEmailServiceWithClient(client SESClient, fromEmail, fromName string) *EmailService {
	return &EmailService{client: client, fromEmail: fromEmail, fromName: fromName}
}

func (s *EmailService) IsEnabled() bool {
	return s.client != nil && s.fromEmail != ""
}

func (s *EmailService) SendFamilyInvite(ctx context.Context, to, familyName, inviterName, inviteURL, code string) error {
	subject := fmt.Sprintf("%s invited you to join %s on ListsHub", inviterName, familyName)
	htmlBody := fmt.Sprintf(`<html>
<body>
	<h2>Family invitation</h2>
	<p><strong>%s</strong> has invited you to join <strong>%s</strong>.</p>
	<p><a href="%s">Accept the invitation</a></p>
	<p>Or enter this code in the app: <strong>%s</strong></p>
</body>
</html>`, html.EscapeString(inviterName), html.EscapeString(familyName), inviteURL, code)
	textBody := fmt.Sprintf("%s has invited you to join %s.\n\nAccept: %s\nCode: %s\n",
		inviterName, familyName, inviteURL, code)

	return s.send(ctx, to, subject, htmlBody, textBody)
}

func (s *EmailService) SendPasswordReset(ctx context.Context, to, name, resetURL string) error {
	subject := "Reset your ListsHub password"
	htmlBody := fmt.Sprintf(`<html>
<body>
	<p>Hi %s,</p>
	<p><a href="%s">Reset your password</a></p>
	<p>This link expires in 1 hour. If you did not ask for it, ignore this email.</p>
</body>
</html>`, html.EscapeString(name), resetURL)
	textBody := fmt.Sprintf("Hi %s,\n\nReset your password: %s\n\nThis link expires in 1 hour.\n", name, resetURL)

	return s.send(ctx, to, subject, htmlBody, textBody)
}

func (s *EmailService) send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	if !s.IsEnabled() {
		log.WithField("to", to).Debug("email disabled, skipping send")
		return nil
	}

	from := s.fromEmail
	if s.fromName != "" {
		from = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination:      &types.Destination{ToAddresses: []string{to}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(htmlBody), Charset: aws.String("UTF-8")},
					Text: &types.Content{Data: aws.String(textBody), Charset: aws.String("UTF-8")},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	log.WithFields(log.Fields{"to": to, "subject": subject}).Info("email sent")
	return nil
}
