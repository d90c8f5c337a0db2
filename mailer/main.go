// Package mailer is the client for the external email transport. The
// transport accepts a JSON request on POST /send-notification and renders and
// delivers the actual messages itself.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/stagecrew/ticket-notifier/model"
)

// Request carries everything the email transport needs to render and deliver
// one message to a set of recipients.
type Request struct {
	Recipients []string
	Subject    string
	EventType  string
	Ticket     *model.Ticket
	Project    *model.Project
	SystemURL  string

	// Extra holds event-specific fields that are merged into the top level
	// of the JSON body.
	Extra map[string]interface{}
}

// payload builds the JSON body for the transport. Extra fields never
// override the standard ones.
func (r *Request) payload(requestID string) map[string]interface{} {
	body := map[string]interface{}{
		"id":         requestID,
		"recipients": r.Recipients,
		"subject":    r.Subject,
		"eventType":  r.EventType,
		"ticket":     r.Ticket,
		"project":    r.Project,
		"systemUrl":  r.SystemURL,
	}
	for key, value := range r.Extra {
		if _, present := body[key]; !present {
			body[key] = value
		}
	}
	return body
}

// Client sends email requests to the external transport with a bounded
// per-request timeout and a bounded number of retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
	log        *logrus.Entry
}

// New returns a mailer client for the transport at baseURL. Each HTTP request
// is bounded by requestTimeout; a request is retried up to maxRetries times
// with exponential backoff before the error is surfaced to the caller.
func New(baseURL string, requestTimeout time.Duration, maxRetries int, log *logrus.Entry) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		maxRetries: maxRetries,
		retryDelay: 500 * time.Millisecond,
		log:        log,
	}
}

// Send delivers one email request. Failures are returned to the caller so
// that it can log them; the caller treats them as non-fatal to the ticket
// transition that triggered the notification.
func (c *Client) Send(ctx context.Context, request *Request) error {
	wrapMsg := "unable to send the notification email"

	if len(request.Recipients) == 0 {
		return nil
	}

	requestID := uuid.NewString()
	body, err := json.Marshal(request.payload(requestID))
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	delay := c.retryDelay
	for attempt := 0; ; attempt++ {
		err = c.post(ctx, body)
		if err == nil {
			c.log.WithFields(logrus.Fields{
				"requestID":  requestID,
				"eventType":  request.EventType,
				"recipients": len(request.Recipients),
			}).Info("notification email request accepted")
			return nil
		}
		if attempt >= c.maxRetries {
			return errors.Wrap(err, wrapMsg)
		}

		c.log.WithError(err).Warnf("email request failed, retrying in %s", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), wrapMsg)
		}
		delay *= 2
	}
}

// post performs a single HTTP exchange with the transport. Any response
// outside the 2xx range is a failure, as is a response body that isn't JSON.
func (c *Client) post(ctx context.Context, body []byte) error {
	url := c.baseURL + "/send-notification"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("email transport returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("email transport returned a malformed response: %s", err.Error())
	}

	return nil
}
