package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ayusman/riskcam/internal/capture"
)

// DefaultTimeout bounds one HTTP analysis request.
const DefaultTimeout = 30 * time.Second

// maxResponseSize caps how much of a reply body is read.
const maxResponseSize = 8 << 20

// Client analyzes one frame. The prompt is sent exactly as given.
type Client interface {
	Analyze(ctx context.Context, f *capture.Frame, prompt string) Result
}

// frameRequest is the body of every frame analysis call.
type frameRequest struct {
	Image  string `json:"image"`
	Prompt string `json:"prompt"`
}

// HTTPClient posts frames to a single endpoint, one request per call.
type HTTPClient struct {
	endpoint string
	http     *http.Client
}

// NewHTTPClient creates a client for endpoint. A non-positive timeout uses DefaultTimeout.
func NewHTTPClient(endpoint string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

// Endpoint returns the URL frames are posted to.
func (c *HTTPClient) Endpoint() string { return c.endpoint }

// Analyze posts the frame and decodes the reply.
func (c *HTTPClient) Analyze(ctx context.Context, f *capture.Frame, prompt string) Result {
	if f == nil {
		return Fail(fmt.Errorf("%w: no frame", ErrRemote))
	}

	body, err := json.Marshal(frameRequest{Image: f.DataURL(), Prompt: prompt})
	if err != nil {
		return Fail(fmt.Errorf("%w: encode request: %v", ErrTransport, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Fail(fmt.Errorf("%w: %v", ErrTransport, err))
	}
	req.Header.Set("Content-Type", "application/json")

	return doJSON(c.http, req)
}

// doJSON executes req and decodes a Result from the reply. A non-2xx reply
// without a JSON error message becomes a remote failure.
func doJSON(client *http.Client, req *http.Request) Result {
	resp, err := client.Do(req)
	if err != nil {
		return Fail(fmt.Errorf("%w: %v", ErrTransport, err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return Fail(fmt.Errorf("%w: read response: %v", ErrTransport, err))
	}

	res := decodeResult(respBody)
	if resp.StatusCode/100 != 2 && !res.Failed() {
		return Fail(fmt.Errorf("%w: %s: %s", ErrRemote, resp.Status, strings.TrimSpace(string(respBody))))
	}
	return res
}

// Passthrough produces an empty successful Result for every frame.
// It drives display-only loops that never contact the service.
type Passthrough struct{}

func (Passthrough) Analyze(_ context.Context, f *capture.Frame, _ string) Result {
	if f == nil {
		return Result{}
	}
	return Result{Size: Size{Width: f.Width, Height: f.Height}}
}
