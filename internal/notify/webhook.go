// Package notify posts recognition results to an outbound webhook — a
// Discord-compatible embed carrying the label, timestamp, and cropped
// picture as an attachment.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/nkust-monitor-iot-project-2024/iot-system/internal/model"
)

// Notifier sends recognition results to whatever is listening downstream of
// the gateway. The gateway treats a notifier failure like any other handler
// failure: logged, not retried.
type Notifier interface {
	Send(ctx context.Context, results model.RecognitionResults) error
}

// Webhook posts detections to a single Discord-compatible webhook URL.
type Webhook struct {
	url        string
	httpClient *http.Client
}

// New returns a Webhook posting to url.
func New(url string) *Webhook {
	return &Webhook{
		url:        url,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Fields      []embedField `json:"fields"`
}

type embedField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type payload struct {
	Embeds []embed `json:"embeds"`
}

// Send posts one notification per detection in results, stopping at the
// first failure; callers treat this the same as any other handler failure
// (logged, not retried).
func (w *Webhook) Send(ctx context.Context, results model.RecognitionResults) error {
	for _, d := range results.Results {
		if err := w.sendOne(ctx, d); err != nil {
			return fmt.Errorf("notify: send detection %s: %w", d.FrameID, err)
		}
	}
	return nil
}

func (w *Webhook) sendOne(ctx context.Context, d model.Detection) error {
	p := payload{Embeds: []embed{{
		Title:       "Suspicious object detected",
		Description: "See the attached picture for details.",
		Fields: []embedField{
			{Name: "Detected at", Value: d.CreatedAt.Format(time.RFC3339)},
			{Name: "Label", Value: d.Label},
		},
	}}}
	payloadJSON, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("payload_json", string(payloadJSON)); err != nil {
		return fmt.Errorf("write payload_json field: %w", err)
	}

	part, err := writer.CreateFormFile("files[0]", "picture.jpg")
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(d.Picture); err != nil {
		return fmt.Errorf("write picture data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, &body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
