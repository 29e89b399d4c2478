package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/elbekdev/atelier/internal/models"
)

// EmailService sends the optional order-result email. Delivery is best
// effort everywhere it is used.
type EmailService interface {
	SendOrderResultEmail(ctx context.Context, email string, order *models.Order) error
}

// AWSSESEmailService sends order-result emails using AWS SES.
type AWSSESEmailService struct {
	sesClient   *ses.Client
	fromAddress string
	logger      *slog.Logger
}

func NewAWSSESEmailService(region, fromAddress string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESEmailService{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		logger:      logger,
	}, nil
}

// SendOrderResultEmail tells the customer their design is ready and links
// the delivered image.
func (s *AWSSESEmailService) SendOrderResultEmail(ctx context.Context, email string, order *models.Order) error {
	game := models.GameLabels[order.SelectedGame]
	design := models.DesignLabels[order.SelectedDesign]

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #f8f9fa; padding: 20px; text-align: center; border-radius: 4px; }
        .content { padding: 20px 0; }
        .button { display: inline-block; background-color: #0066cc; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .footer { color: #666; font-size: 12px; margin-top: 20px; padding-top: 20px; border-top: 1px solid #eee; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Buyurtmangiz tayyor! 🎉</h1>
        </div>
        <div class="content">
            <p>Salom %s,</p>
            <p>Sizning buyurtmangiz (%s / %s) tayyor bo'ldi.</p>
            <p><a href="%s" class="button">Natijani ko'rish</a></p>
            <p>Dizayner izohi:<br><em>%s</em></p>
        </div>
        <div class="footer">
            <p>Bu avtomatik xabar. Iltimos, javob yozmang.</p>
        </div>
    </div>
</body>
</html>
`, order.FirstName, game, design, order.ResultImage, order.ResultDescription)

	textBody := fmt.Sprintf(`Buyurtmangiz tayyor!

Salom %s,

Sizning buyurtmangiz (%s / %s) tayyor bo'ldi.

Natija: %s

Dizayner izohi:
%s

Bu avtomatik xabar. Iltimos, javob yozmang.
`, order.FirstName, game, design, order.ResultImage, order.ResultDescription)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String("Buyurtmangiz tayyor — Elbek Productions"),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(htmlBody),
				},
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send order result email via SES",
			slog.String("order_id", order.ID),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("order result email sent",
		slog.String("order_id", order.ID),
		slog.String("message_id", *result.MessageId))

	return nil
}

// NoopEmailService is used when email delivery is disabled in config.
type NoopEmailService struct{}

func (NoopEmailService) SendOrderResultEmail(ctx context.Context, email string, order *models.Order) error {
	return nil
}
