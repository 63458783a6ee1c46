package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/loadvane/corrida/internal/lib"
	"github.com/loadvane/corrida/internal/metrics"
)

// WebhookOutput POSTs a JSON envelope per result to a configured URL. It's
// one `http.Client.Do` call with a JSON body, which doesn't justify pulling
// in a dependency, so this sink is built on standard-library `net/http`.
type WebhookOutput struct {
	url string
	hc  *http.Client
}

// NewWebhook builds a webhook output posting to url.
func NewWebhook(url string) (*WebhookOutput, error) {
	if url == "" {
		return nil, fmt.Errorf("webhook output requires a URL")
	}
	return &WebhookOutput{url: url, hc: &http.Client{Timeout: 5 * time.Second}}, nil
}

func (o *WebhookOutput) Initialize() error {
	return nil
}

type webhookResultEnvelope struct {
	Type   string     `json:"type"`
	Result lib.Result `json:"result"`
}

func (o *WebhookOutput) WriteResult(r lib.Result) {
	o.post(webhookResultEnvelope{Type: "result", Result: r})
}

type webhookSummaryEnvelope struct {
	Type    string          `json:"type"`
	Summary metrics.Summary `json:"summary"`
}

func (o *WebhookOutput) WriteSummary(s metrics.Summary) {
	o.post(webhookSummaryEnvelope{Type: "summary", Summary: s})
}

func (o *WebhookOutput) post(body interface{}) {
	b, err := json.Marshal(body)
	if err != nil {
		return
	}
	resp, err := o.hc.Post(o.url, "application/json", bytes.NewReader(b))
	if err != nil {
		return
	}
	_ = resp.Body.Close()
}

func (o *WebhookOutput) Finalize() error {
	return nil
}
