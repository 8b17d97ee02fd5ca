package ollama

import (
	"net/http"
	"net/url"

	"github.com/DecisionNerd/infoextract-cidoc/pkg/ai"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"
)

// ExtractionClient implements ai.Client using an Ollama server.
type ExtractionClient struct {
	model string

	reqLock *semaphore.Weighted
	metrics ai.MetricsRecorder

	Client *api.Client
}

// NewExtractionClientParams configures an ExtractionClient.
type NewExtractionClientParams struct {
	Model   string
	BaseURL string
	ApiKey  string

	MaxConcurrentRequests int64
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

// NewExtractionClient connects to the Ollama server at BaseURL, or the
// default local server when it is empty.
func NewExtractionClient(params NewExtractionClientParams) (*ExtractionClient, error) {
	var (
		u   *url.URL
		err error
	)

	if params.BaseURL != "" {
		u, err = url.Parse(params.BaseURL)
		if err != nil {
			return nil, err
		}
	}

	transport := http.DefaultTransport
	if params.ApiKey != "" {
		transport = &headerTransport{
			headers: map[string]string{"Authorization": "Bearer " + params.ApiKey},
			rt:      http.DefaultTransport,
		}
	}

	maxReq := params.MaxConcurrentRequests
	if maxReq <= 0 {
		maxReq = 1
	}

	return &ExtractionClient{
		model:   params.Model,
		reqLock: semaphore.NewWeighted(maxReq),
		Client:  api.NewClient(u, &http.Client{Transport: transport}),
	}, nil
}

// ResetMetrics clears accumulated usage.
func (c *ExtractionClient) ResetMetrics() {
	c.metrics.Reset()
}

// GetMetrics returns usage since the last reset.
func (c *ExtractionClient) GetMetrics() ai.ModelMetrics {
	return c.metrics.Snapshot()
}

var _ ai.Client = (*ExtractionClient)(nil)
