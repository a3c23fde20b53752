package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// DeliveryError reports a failed webhook POST. Status is zero when the request never
// got a response.
type DeliveryError struct {
	Status int
	Body   string
	Err    error
}

func (e *DeliveryError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("webhook delivery failed: HTTP %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("webhook delivery failed: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// ErrNoWebhook is returned when asked to post to an empty URL.
var ErrNoWebhook = errors.New("no webhook configured")

// Sender posts one message to one webhook.
type Sender interface {
	Send(ctx context.Context, webhookURL string, msg Message) error
}

// Client delivers messages with a single bounded attempt. It never retries.
type Client struct {
	timeout time.Duration
}

// NewClient returns a client whose requests are bounded by timeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{timeout: timeout}
}

// Send POSTs msg as JSON; any 2xx response is success.
func (c *Client) Send(ctx context.Context, webhookURL string, msg Message) error {
	if strings.TrimSpace(webhookURL) == "" {
		return ErrNoWebhook
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return &DeliveryError{Err: context.DeadlineExceeded}
		}
		if remaining < timeout {
			timeout = remaining
		}
	}

	agent := fiber.Post(webhookURL).
		JSON(msg).
		Timeout(timeout)

	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return &DeliveryError{Err: errors.Join(errs...)}
	}
	if status < fiber.StatusOK || status >= fiber.StatusMultipleChoices {
		return &DeliveryError{Status: status, Body: truncate(string(body), 256)}
	}
	return nil
}
