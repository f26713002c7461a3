package scheduling

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/michalsegal11/your-digital-companion/libs/salonconfig"
)

type httpProvider struct {
	baseURL string
	client  *http.Client
}

// NewHTTPProvider reads snapshots from business-service. A nil client gets a traced default.
func NewHTTPProvider(baseURL string, client *http.Client) Provider {
	if client == nil {
		client = &http.Client{
			Timeout:   3 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &httpProvider{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (p *httpProvider) Snapshot(ctx context.Context) (salonconfig.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+salonconfig.ConfigPath, nil)
	if err != nil {
		return salonconfig.Snapshot{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return salonconfig.Snapshot{}, fmt.Errorf("fetch salon config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return salonconfig.Snapshot{}, fmt.Errorf("fetch salon config: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var snap salonconfig.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return salonconfig.Snapshot{}, fmt.Errorf("decode salon config: %w", err)
	}
	return snap, nil
}
