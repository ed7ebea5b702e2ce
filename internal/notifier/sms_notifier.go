package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	config "github.com/Keoroanthony/nuomi-store/configs"
	"github.com/Keoroanthony/nuomi-store/internal/models"
)

type SMSResponse struct {
	SMSMessageData struct {
		Message    string `json:"Message"`
		Recipients []struct {
			StatusCode int    `json:"statusCode"`
			Number     string `json:"number"`
			Cost       string `json:"cost"`
			Status     string `json:"status"`
			MessageID  string `json:"messageId"`
		} `json:"Recipients"`
	} `json:"SMSMessageData"`
}

// PhoneLookup finds the phone number of the customer who owns an order.
type PhoneLookup func(ctx context.Context, userID string) (string, error)

type SMSNotifier struct {
	cfg    config.AfricaTalkingConfig
	client *http.Client
	phone  PhoneLookup
}

func NewSMSNotifier(cfg config.AfricaTalkingConfig, client *http.Client, phone PhoneLookup) *SMSNotifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &SMSNotifier{cfg: cfg, client: client, phone: phone}
}

func (n *SMSNotifier) OrderPlaced(ctx context.Context, order models.Order) error {
	msg := fmt.Sprintf("Your order #%s has been successfully placed! Total: %s. Thank you for shopping with us!",
		shortID(order.ID), decimal.NewFromFloat(order.Total).StringFixed(2))
	return n.notify(ctx, order, msg)
}

func (n *SMSNotifier) OrderStatusChanged(ctx context.Context, order models.Order) error {
	return n.notify(ctx, order, fmt.Sprintf("Your order #%s is now: %s", shortID(order.ID), order.Status))
}

func (n *SMSNotifier) notify(ctx context.Context, order models.Order, message string) error {
	phone, err := n.phone(ctx, order.UserID)
	if err != nil {
		return fmt.Errorf("failed to look up phone for order %s: %w", order.ID, err)
	}
	if phone == "" {
		// customers without a phone number only get email
		return nil
	}
	return n.SendSMS(ctx, phone, message)
}

func (n *SMSNotifier) SendSMS(ctx context.Context, toPhoneNumber, message string) error {
	data := url.Values{}
	data.Set("username", n.cfg.Username)
	data.Set("to", toPhoneNumber)
	data.Set("message", message)
	data.Set("from", n.cfg.SenderID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.SMSURL, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create SMS request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("apikey", n.cfg.APIKey)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("SMS send failed: %w", err)
	}
	defer resp.Body.Close()

	var smsResp SMSResponse
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		if decodeErr := json.NewDecoder(resp.Body).Decode(&smsResp); decodeErr == nil {
			slog.Warn("SMS API returned error", "to", toPhoneNumber, "status", resp.StatusCode, "message", smsResp.SMSMessageData.Message)
		}
		return fmt.Errorf("SMS API returned non-success status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(&smsResp); err != nil {
		return fmt.Errorf("failed to decode SMS response: %w", err)
	}

	slog.Info("SMS sent", "to", toPhoneNumber, "message", smsResp.SMSMessageData.Message)
	return nil
}
