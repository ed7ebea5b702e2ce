package notifier

import (
	"context"
	"fmt"
	"html"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/shopspring/decimal"

	config "github.com/Keoroanthony/nuomi-store/configs"
	"github.com/Keoroanthony/nuomi-store/internal/models"
)

type SESAPI interface {
	SendEmail(ctx context.Context, in *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type EmailNotifier struct {
	client SESAPI
	sender string
}

func NewEmailNotifier(ctx context.Context, cfg config.EmailConfig) (*EmailNotifier, error) {
	if cfg.SenderEmail == "" {
		return nil, fmt.Errorf("sender email address is not configured in environment variables")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}
	return NewEmailNotifierWith(ses.NewFromConfig(awsCfg), cfg.SenderEmail), nil
}

func NewEmailNotifierWith(client SESAPI, sender string) *EmailNotifier {
	return &EmailNotifier{client: client, sender: sender}
}

func (n *EmailNotifier) OrderPlaced(ctx context.Context, order models.Order) error {
	subject := fmt.Sprintf("Order #%s Confirmation - Thank You for Your Purchase!", shortID(order.ID))
	lead := fmt.Sprintf("Thank you for your order! Your order #%s has been successfully placed.", shortID(order.ID))
	return n.send(ctx, order, subject, lead, "We'll send you another email when your order ships.")
}

func (n *EmailNotifier) OrderStatusChanged(ctx context.Context, order models.Order) error {
	subject := fmt.Sprintf("Order #%s Update: %s", shortID(order.ID), order.Status)
	lead := fmt.Sprintf("The status of your order #%s is now: %s.", shortID(order.ID), order.Status)
	return n.send(ctx, order, subject, lead, "")
}

func (n *EmailNotifier) send(ctx context.Context, order models.Order, subject, lead, closing string) error {
	if order.CustomerEmail == "" {
		return fmt.Errorf("recipient email address is empty")
	}

	total := decimal.NewFromFloat(order.Total).StringFixed(2)
	name := html.EscapeString(order.CustomerName)

	bodyHTML := fmt.Sprintf(`
        <html>
        <body>
            <p>Dear %s,</p>
            <p>%s</p>
            <p><strong>Order Details:</strong></p>
            <ul>
                <li>Order ID: %s</li>
                <li>Items: %d</li>
                <li>Total Amount: %s</li>
            </ul>
            <p>%s</p>
            <p>Best regards,</p>
            <p>NUOMI</p>
        </body>
        </html>`, name, html.EscapeString(lead), order.ID, len(order.Items), total, html.EscapeString(closing))

	bodyText := fmt.Sprintf(
		"Dear %s,\n\n%s\n\nOrder Details:\nOrder ID: %s\nItems: %d\nTotal Amount: %s\n\n%s\n\nBest regards,\nNUOMI",
		order.CustomerName, lead, order.ID, len(order.Items), total, closing)

	input := &ses.SendEmailInput{
		Source: aws.String(n.sender),
		Destination: &types.Destination{
			ToAddresses: []string{order.CustomerEmail},
		},
		Message: &types.Message{
			Subject: &types.Content{Charset: aws.String("UTF-8"), Data: aws.String(subject)},
			Body: &types.Body{
				Html: &types.Content{Charset: aws.String("UTF-8"), Data: aws.String(bodyHTML)},
				Text: &types.Content{Charset: aws.String("UTF-8"), Data: aws.String(bodyText)},
			},
		},
	}

	if _, err := n.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	slog.Info("Order email sent", "order_id", order.ID, "to", order.CustomerEmail)
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
