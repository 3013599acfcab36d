package monitor

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// AlertSink is a pluggable alert delivery target. Send must never block a
// trade: delivery failures are logged and dropped.
type AlertSink interface {
	Send(message string) error
}

// Telegram delivers alerts via the Telegram bot API.
type Telegram struct {
	Token  string
	ChatID string
	client *http.Client
}

func NewTelegram(token, chatID string) *Telegram {
	return &Telegram{
		Token:  token,
		ChatID: chatID,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *Telegram) Send(message string) error {
	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.Token)
	form := url.Values{}
	form.Set("chat_id", t.ChatID)
	form.Set("text", message)
	resp, err := t.client.Post(endpoint, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram send: status %d", resp.StatusCode)
	}
	return nil
}

// LogSink is the fallback used when no Telegram credentials are set; the
// monitor already logs every alert, so Send is a no-op.
type LogSink struct{}

func (LogSink) Send(string) error { return nil }
