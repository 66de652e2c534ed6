package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/tidwall/gjson"

	"alertcore/internal/config"
	"alertcore/internal/domain"
)

// SendResult carries provider-side delivery metadata.
// Params: provider message reference when the transport returns one.
// Returns: per-send outcome detail.
type SendResult struct {
	ProviderMessageID string
}

// ChannelSender delivers one alert to one recipient over a single channel.
// Params: context, recipient address, and alert document.
// Returns: provider result or transport error.
type ChannelSender interface {
	Channel() string
	Send(ctx context.Context, recipient string, alert domain.Alert) (SendResult, error)
}

// BuildSenders constructs senders for every enabled channel transport.
// Params: notify config snapshot.
// Returns: senders keyed by channel name.
func BuildSenders(cfg config.NotifyConfig) map[string]ChannelSender {
	senders := make(map[string]ChannelSender)
	if cfg.Email.Enabled {
		senders[config.ChannelEmail] = NewEmailSender(cfg.Email)
	}
	if cfg.SMS.Enabled {
		senders[config.ChannelSMS] = NewSMSSender(cfg.SMS)
	}
	if cfg.Chat.Enabled {
		senders[config.ChannelChat] = NewChatSender(cfg.Chat)
	}
	if cfg.Webhook.Enabled {
		senders[config.ChannelWebhook] = NewWebhookSender(cfg.Webhook)
	}
	return senders
}

// EmailSender delivers alerts over SMTP.
// Params: SMTP endpoint and credentials from config.
// Returns: email channel sender.
type EmailSender struct {
	cfg config.EmailChannel

	// sendMail is swappable in tests; defaults to smtp.SendMail.
	sendMail func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailSender creates SMTP email sender.
// Params: email channel config.
// Returns: initialized sender.
func NewEmailSender(cfg config.EmailChannel) *EmailSender {
	return &EmailSender{cfg: cfg, sendMail: smtp.SendMail}
}

// Channel returns sender channel name.
// Params: none.
// Returns: static channel key.
func (s *EmailSender) Channel() string {
	return config.ChannelEmail
}

// Send delivers one HTML email to the recipient address.
// Params: context, recipient email address, and alert document.
// Returns: empty result or SMTP error.
func (s *EmailSender) Send(_ context.Context, recipient string, alert domain.Alert) (SendResult, error) {
	subject, body := EmailContent(alert)

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", recipient)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	if err := s.sendMail(addr, auth, s.cfg.From, []string{recipient}, msg.Bytes()); err != nil {
		return SendResult{}, fmt.Errorf("smtp send: %w", err)
	}
	return SendResult{}, nil
}

// SMSSender delivers alerts through an HTTP SMS gateway.
// Params: gateway URL, API key, and message-id response path from config.
// Returns: SMS channel sender.
type SMSSender struct {
	cfg    config.SMSChannel
	client *http.Client
}

// NewSMSSender creates HTTP SMS gateway sender.
// Params: SMS channel config.
// Returns: initialized sender.
func NewSMSSender(cfg config.SMSChannel) *SMSSender {
	return &SMSSender{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
	}
}

// Channel returns sender channel name.
// Params: none.
// Returns: static channel key.
func (s *SMSSender) Channel() string {
	return config.ChannelSMS
}

// Send posts one SMS to the gateway for the recipient phone number.
// Params: context, recipient phone number, and alert document.
// Returns: provider message id or transport/status error.
func (s *SMSSender) Send(ctx context.Context, recipient string, alert domain.Alert) (SendResult, error) {
	payload, err := json.Marshal(map[string]string{
		"to":      recipient,
		"from":    s.cfg.From,
		"message": SMSContent(alert),
	})
	if err != nil {
		return SendResult{}, fmt.Errorf("encode sms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.GatewayURL, bytes.NewReader(payload))
	if err != nil {
		return SendResult{}, fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return SendResult{}, fmt.Errorf("sms send: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return SendResult{}, fmt.Errorf("sms gateway status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	result := SendResult{}
	if path := strings.TrimSpace(s.cfg.MessageIDPath); path != "" {
		result.ProviderMessageID = gjson.GetBytes(body, path).String()
	}
	return result, nil
}

// ChatSender delivers alerts to Telegram chats.
// Params: bot token and API base from config.
// Returns: chat channel sender.
type ChatSender struct {
	client  *tgbot.Bot
	initErr error
}

// NewChatSender creates Telegram chat sender.
// Params: chat channel config.
// Returns: initialized sender; construction errors surface on Send.
func NewChatSender(cfg config.ChatChannel) *ChatSender {
	sender := &ChatSender{}
	if strings.TrimSpace(cfg.BotToken) == "" {
		sender.initErr = errors.New("chat bot token is required")
		return sender
	}

	options := []tgbot.Option{
		tgbot.WithSkipGetMe(),
	}
	if strings.TrimSpace(cfg.APIBase) != "" {
		options = append(options, tgbot.WithServerURL(strings.TrimRight(cfg.APIBase, "/")))
	}
	botClient, err := tgbot.New(cfg.BotToken, options...)
	if err != nil {
		sender.initErr = fmt.Errorf("init chat bot: %w", err)
		return sender
	}
	sender.client = botClient
	return sender
}

// Channel returns sender channel name.
// Params: none.
// Returns: static channel key.
func (s *ChatSender) Channel() string {
	return config.ChannelChat
}

// Send posts one chat message to the recipient chat id.
// Params: context, chat id, and alert document.
// Returns: provider message id or transport error.
func (s *ChatSender) Send(ctx context.Context, recipient string, alert domain.Alert) (SendResult, error) {
	if s.initErr != nil {
		return SendResult{}, s.initErr
	}

	sent, err := s.client.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:    normalizeChatID(recipient),
		Text:      ChatContent(alert),
		ParseMode: tgmodels.ParseModeHTML,
	})
	if err != nil {
		return SendResult{}, fmt.Errorf("chat send: %w", err)
	}
	if sent == nil || sent.ID <= 0 {
		return SendResult{}, errors.New("chat send returned empty message id")
	}
	return SendResult{ProviderMessageID: strconv.Itoa(sent.ID)}, nil
}

// normalizeChatID converts numeric chat IDs to int64 and keeps handles as string.
// Params: configured recipient value.
// Returns: Telegram API chat id union value.
func normalizeChatID(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if numeric, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return numeric
	}
	return trimmed
}

// WebhookSender posts structured alert payloads to recipient URLs.
// Params: method, headers, and response ref path from config.
// Returns: webhook channel sender.
type WebhookSender struct {
	cfg    config.WebhookChannel
	client *http.Client
}

// NewWebhookSender creates generic webhook sender.
// Params: webhook channel config.
// Returns: initialized sender.
func NewWebhookSender(cfg config.WebhookChannel) *WebhookSender {
	return &WebhookSender{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
	}
}

// Channel returns sender channel name.
// Params: none.
// Returns: static channel key.
func (s *WebhookSender) Channel() string {
	return config.ChannelWebhook
}

// Send posts the alert payload to the recipient URL.
// Params: context, webhook URL, and alert document.
// Returns: provider reference or transport/status error.
func (s *WebhookSender) Send(ctx context.Context, recipient string, alert domain.Alert) (SendResult, error) {
	payload, err := json.Marshal(WebhookContent(alert))
	if err != nil {
		return SendResult{}, fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, s.cfg.Method, recipient, bytes.NewReader(payload))
	if err != nil {
		return SendResult{}, fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range s.cfg.Headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return SendResult{}, fmt.Errorf("webhook send: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return SendResult{}, fmt.Errorf("webhook status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	result := SendResult{}
	if path := strings.TrimSpace(s.cfg.RefJSONPath); path != "" {
		result.ProviderMessageID = gjson.GetBytes(body, path).String()
	}
	return result, nil
}
