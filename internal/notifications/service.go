package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"archflow/internal/config"
)

const userAgent = "archflow/0.1"

// Event names a workflow milestone.
type Event string

const (
	EventJobCreated    Event = "job_created"
	EventJobClosed     Event = "job_closed"
	EventJobCanceled   Event = "job_canceled"
	EventBatchIngested Event = "batch_ingested"
	EventBatchFailed   Event = "batch_failed"
	EventError         Event = "error"
	EventTest          Event = "test"
)

// Payload carries the event's fields, e.g. "jobId", "label", "profile".
type Payload map[string]string

// Service publishes workflow events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := cfg.Notifications.RequestTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

// NewNoop returns a service that drops every event.
func NewNoop() Service {
	return noopService{}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

// format renders event as an ntfy message. Events without a format, such as
// job creation, are not sent.
func format(event Event, payload Payload) (message, bool) {
	get := func(key string) string {
		return strings.TrimSpace(payload[key])
	}
	job := func() string {
		label := get("label")
		if label == "" {
			label = "(unlabeled)"
		}
		return fmt.Sprintf("#%s %s", get("jobId"), label)
	}

	switch event {
	case EventJobClosed:
		return message{
			title: "Archflow - Job Finished",
			body:  fmt.Sprintf("✅ %s finished (%s)", job(), get("profile")),
			tags:  []string{"archflow", "job", "closed"},
		}, true
	case EventJobCanceled:
		return message{
			title: "Archflow - Job Canceled",
			body:  fmt.Sprintf("%s was canceled (%s)", job(), get("profile")),
			tags:  []string{"archflow", "job", "canceled"},
		}, true
	case EventBatchIngested:
		return message{
			title: "Archflow - Batch Ingested",
			body:  fmt.Sprintf("📦 %s: %s items ingested", get("folder"), get("items")),
			tags:  []string{"archflow", "batch", "ingested"},
		}, true
	case EventBatchFailed:
		body := fmt.Sprintf("❌ %s failed in %s", get("folder"), get("state"))
		if detail := get("log"); detail != "" {
			body += "\n" + detail
		}
		return message{
			title:    "Archflow - Batch Failed",
			body:     body,
			tags:     []string{"archflow", "batch", "failed"},
			priority: "high",
		}, true
	case EventError:
		var b strings.Builder
		b.WriteString("❌ Error")
		if ctxLabel := get("context"); ctxLabel != "" {
			b.WriteString(" with ")
			b.WriteString(ctxLabel)
		}
		b.WriteString(": ")
		if errText := get("error"); errText != "" {
			b.WriteString(errText)
		} else {
			b.WriteString("unknown")
		}
		return message{
			title:    "Archflow - Error",
			body:     b.String(),
			tags:     []string{"archflow", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Archflow - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"archflow", "test"},
			priority: "low",
		}, true
	}
	return message{}, false
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
