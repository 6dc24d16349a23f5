package notify

import (
	"context"
	"fmt"

	"github.com/mailjet/mailjet-apiv3-go/v4"
	"go.uber.org/zap"
)

type Sender interface {
	Send(ctx context.Context, emails []Email) error
}

// MailjetSender delivers through the Mailjet v3.1 send API.
type MailjetSender struct {
	client   *mailjet.Client
	from     string
	fromName string
}

func NewMailjetSender(apiKey, secretKey, from, fromName string) *MailjetSender {
	return &MailjetSender{
		client:   mailjet.NewMailjetClient(apiKey, secretKey),
		from:     from,
		fromName: fromName,
	}
}

func (s *MailjetSender) Send(ctx context.Context, emails []Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	messages := s.messages(emails)
	if len(messages.Info) == 0 {
		return nil
	}
	if _, err := s.client.SendMailV31(messages); err != nil {
		return fmt.Errorf("mailjet send: %w", err)
	}
	return nil
}

func (s *MailjetSender) messages(emails []Email) *mailjet.MessagesV31 {
	info := make([]mailjet.InfoMessagesV31, 0, len(emails))
	for _, e := range emails {
		info = append(info, mailjet.InfoMessagesV31{
			From: &mailjet.RecipientV31{Email: s.from, Name: s.fromName},
			To: &mailjet.RecipientsV31{
				mailjet.RecipientV31{Email: e.To, Name: e.ToName},
			},
			Subject:  e.Subject,
			HTMLPart: e.HTML,
		})
	}
	return &mailjet.MessagesV31{Info: info}
}

// LogSender only logs. It stands in when no Mailjet keys are configured.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, emails []Email) error {
	for _, e := range emails {
		s.log.Info("email not sent, mail provider disabled",
			zap.String("to", e.To),
			zap.String("subject", e.Subject),
		)
	}
	return nil
}
