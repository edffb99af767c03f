package whatsapp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// defaultCountryCode is prepended to destination numbers that carry no
// international prefix.
const defaultCountryCode = "+91"

// Sender dispatches a single message to a phone number. Callers treat the
// send as fire-and-forget; the returned error is for logging only.
type Sender interface {
	Send(to, body string) error
}

// NormalizeNumber ensures the destination carries an international prefix.
// Numbers without a leading "+" get the default country code; nothing else
// about the number is validated.
func NormalizeNumber(number string) string {
	if !strings.HasPrefix(number, "+") {
		return defaultCountryCode + number
	}
	return number
}

type message struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

// Client talks to the WhatsApp gateway's HTTP API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewClient(baseURL, token string, logger *logrus.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

func (c *Client) Send(to, body string) error {
	jsonData, err := json.Marshal(message{To: to, Body: body})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequest("POST", c.baseURL+"/messages", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to WhatsApp gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("WhatsApp gateway returned error status: %d", resp.StatusCode)
	}

	c.logger.WithFields(logrus.Fields{
		"to":     to,
		"status": resp.StatusCode,
	}).Info("WhatsApp message sent")

	return nil
}

// LogSender logs messages instead of delivering them. Used when no gateway
// is configured, e.g. in local development.
type LogSender struct {
	logger *logrus.Logger
}

func NewLogSender(logger *logrus.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(to, body string) error {
	s.logger.WithFields(logrus.Fields{
		"to":   to,
		"body": body,
	}).Info("WhatsApp message (log only, no gateway configured)")
	return nil
}
