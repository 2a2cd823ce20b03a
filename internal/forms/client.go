// Package forms submits contact-form entries to a third-party forms-intake API.
package forms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrSubmitFailed is returned for any non-2xx answer from the intake API.
var ErrSubmitFailed = errors.New("form submission failed")

type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Submission struct {
	Fields []Field `json:"fields"`
}

type Client struct {
	submitURL  string
	httpClient *http.Client
}

func NewClient(submitURL string) *Client {
	return &Client{
		submitURL: submitURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Submit(ctx context.Context, submission Submission) error {
	if c.submitURL == "" {
		return fmt.Errorf("%w: no submit URL configured", ErrSubmitFailed)
	}

	jsonData, err := json.Marshal(submission)
	if err != nil {
		return fmt.Errorf("failed to encode submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.submitURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: status %d, body: %s", ErrSubmitFailed, resp.StatusCode, string(body))
	}
	return nil
}
