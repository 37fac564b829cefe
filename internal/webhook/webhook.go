// Package webhook posts alert events to an HTTP endpoint.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/samber/lo"

	"github.com/banshee-data/watch.report/internal/httputil"
	"github.com/banshee-data/watch.report/internal/nvr/l4signals"
	"github.com/banshee-data/watch.report/internal/nvr/l5events"
)

// Notifier is an l5events.Sink that POSTs each matching event as JSON.
type Notifier struct {
	url    string
	client httputil.HTTPClient
	kinds  []l4signals.Kind
}

// NewNotifier posts to url. With no kinds every event is sent; otherwise
// only events of the listed kinds are.
func NewNotifier(url string, client httputil.HTTPClient, kinds ...l4signals.Kind) *Notifier {
	if client == nil {
		client = httputil.NewStandardClient(nil)
	}
	return &Notifier{url: url, client: client, kinds: kinds}
}

func (n *Notifier) Name() string { return "webhook" }

// Wants reports whether events of kind k are delivered.
func (n *Notifier) Wants(k l4signals.Kind) bool {
	return len(n.kinds) == 0 || lo.Contains(n.kinds, k)
}

func (n *Notifier) Publish(ctx context.Context, ev l5events.Event) error {
	if !n.Wants(ev.Kind()) {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.ID, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Watch-Event-Kind", string(ev.Kind()))

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post event %s: %w", ev.ID, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("post event %s: unexpected status %d", ev.ID, resp.StatusCode)
	}
	return nil
}
