package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strconv"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/gantry/internal/version"
)

// ScriptHook runs an executable with the event details as arguments:
// <project> <pipeline> <status>, plus <job> for job events. The event
// name is exported as GANTRY_EVENT.
type ScriptHook struct {
	name   string
	events []Event
	path   string
}

// NewScriptHook creates a script hook.
func NewScriptHook(name string, events []Event, path string) (*ScriptHook, error) {
	if path == "" {
		return nil, fmt.Errorf("script path required")
	}
	return &ScriptHook{name: name, events: events, path: path}, nil
}

func (h *ScriptHook) Name() string    { return h.name }
func (h *ScriptHook) Events() []Event { return h.events }

func (h *ScriptHook) Execute(ctx context.Context, hc *Context) error {
	args := []string{hc.Project, strconv.Itoa(hc.Pipeline), hc.Status}
	if hc.Job != "" {
		args = append(args, hc.Job)
	}

	// #nosec G204 - the script path comes from the deployment config
	cmd := exec.CommandContext(ctx, h.path, args...)
	cmd.Env = append(os.Environ(), "GANTRY_EVENT="+string(hc.Event))

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("script failed: %w (stderr: %s)", err, stderr.String())
	}
	return nil
}

// WebhookHook POSTs the event payload as JSON. Each delivery carries a
// unique X-Gantry-Delivery ID so receivers can deduplicate.
type WebhookHook struct {
	name   string
	events []Event
	url    string
	client *http.Client
}

// NewWebhookHook creates a webhook hook.
func NewWebhookHook(name string, events []Event, url string) (*WebhookHook, error) {
	if url == "" {
		return nil, fmt.Errorf("webhook URL required")
	}
	return &WebhookHook{
		name:   name,
		events: events,
		url:    url,
		client: &http.Client{Timeout: DefaultTimeout},
	}, nil
}

func (h *WebhookHook) Name() string    { return h.name }
func (h *WebhookHook) Events() []Event { return h.events }

func (h *WebhookHook) Execute(ctx context.Context, hc *Context) error {
	payload, err := json.Marshal(hc)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("X-Gantry-Event", string(hc.Event))
	req.Header.Set("X-Gantry-Delivery", uuid.NewString())

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
