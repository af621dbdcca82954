package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

type Client struct {
	serverToken string
	fromEmail   string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(serverToken, fromEmail string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// SendRequestResolved notifies a user that their subscription request was
// approved or rejected.
func (c *Client) SendRequestResolved(toEmail, name, status, tier string, amount int) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	var subject, lead string
	switch status {
	case "approved":
		subject = "Your Healix subscription is active"
		lead = fmt.Sprintf("Your %s plan request (%d) was approved. Your family's subscription is now active.", tier, amount)
	case "rejected":
		subject = "Your Healix subscription request was declined"
		lead = fmt.Sprintf("Your %s plan request (%d) was declined. Please review your payment receipt and submit a new request.", tier, amount)
	default:
		subject = "Update on your Healix subscription request"
		lead = fmt.Sprintf("Your %s plan request is now %s.", tier, status)
	}

	textBody := fmt.Sprintf("Hi %s,\n\n%s\n\n— Healix", name, lead)
	htmlBody := fmt.Sprintf(`<p>Hi %s,</p><p>%s</p><p>— Healix</p>`, name, lead)

	payload := postmarkEmail{
		From:     c.fromEmail,
		To:       toEmail,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: textBody,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequest("POST", "https://api.postmarkapp.com/email", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}
