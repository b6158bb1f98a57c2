package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jhoicas/fbs-core/internal/application/dto"
	"github.com/jhoicas/fbs-core/internal/domain/entity"
)

// maxPages corta la paginación si el marketplace nunca deja de devolver has_more.
const maxPages = 100

// HTTPClient implementa ports.MarketplaceClient contra el feed JSON de pedidos del marketplace:
//
//	GET {api_url}/orders?since=<RFC3339Nano>&page=<n>
//	Authorization: Bearer <api_key>
type HTTPClient struct {
	httpClient *http.Client
}

// NewHTTPClient construye el cliente. timeout acota cada petición individual.
func NewHTTPClient(timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{httpClient: &http.Client{Timeout: timeout}}
}

type ordersPage struct {
	Orders  []dto.OrderEvent `json:"orders"`
	HasMore bool             `json:"has_more"`
}

// FetchOrdersSince recorre todas las páginas del feed y devuelve los eventos posteriores a since.
func (c *HTTPClient) FetchOrdersSince(ctx context.Context, m *entity.Marketplace, since time.Time) ([]dto.OrderEvent, error) {
	if m == nil || strings.TrimSpace(m.APIURL) == "" {
		return nil, fmt.Errorf("marketplace sin api_url")
	}
	base, err := url.Parse(strings.TrimRight(m.APIURL, "/") + "/orders")
	if err != nil {
		return nil, fmt.Errorf("api_url inválida: %w", err)
	}

	var out []dto.OrderEvent
	for page := 1; page <= maxPages; page++ {
		q := base.Query()
		if !since.IsZero() {
			q.Set("since", since.UTC().Format(time.RFC3339Nano))
		}
		q.Set("page", strconv.Itoa(page))
		u := *base
		u.RawQuery = q.Encode()

		res, err := c.fetchPage(ctx, u.String(), m.APIKey)
		if err != nil {
			return nil, fmt.Errorf("marketplace %s página %d: %w", m.ID, page, err)
		}
		for _, ev := range res.Orders {
			if ev.UpdatedAt.After(since) {
				out = append(out, ev)
			}
		}
		if !res.HasMore {
			return out, nil
		}
	}
	return nil, fmt.Errorf("marketplace %s: se superaron %d páginas", m.ID, maxPages)
}

func (c *HTTPClient) fetchPage(ctx context.Context, rawURL, apiKey string) (*ordersPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var page ordersPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("respuesta inválida: %w", err)
	}
	return &page, nil
}
