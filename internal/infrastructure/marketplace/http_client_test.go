package marketplace_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/fbs-core/internal/application/dto"
	"github.com/jhoicas/fbs-core/internal/domain/entity"
	"github.com/jhoicas/fbs-core/internal/infrastructure/marketplace"
)

func TestHTTPClient_PaginaYFiltra(t *testing.T) {
	since := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	var pages []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders", r.URL.Path)
		assert.Equal(t, "Bearer secreto", r.Header.Get("Authorization"))
		assert.Equal(t, since.Format(time.RFC3339Nano), r.URL.Query().Get("since"))
		page := r.URL.Query().Get("page")
		pages = append(pages, page)

		body := map[string]any{}
		switch page {
		case "1":
			body["orders"] = []dto.OrderEvent{
				{ExternalID: "A-1", Status: "new", TotalPrice: decimal.NewFromInt(10), UpdatedAt: since.Add(time.Minute)},
				{ExternalID: "A-0", Status: "new", UpdatedAt: since},
			}
			body["has_more"] = true
		default:
			body["orders"] = []dto.OrderEvent{
				{ExternalID: "A-2", Status: "cancelled", UpdatedAt: since.Add(2 * time.Minute)},
			}
			body["has_more"] = false
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	defer srv.Close()

	c := marketplace.NewHTTPClient(time.Second)
	events, err := c.FetchOrdersSince(context.Background(), &entity.Marketplace{ID: "mp", APIURL: srv.URL + "/", APIKey: "secreto"}, since)
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2"}, pages)
	require.Len(t, events, 2)
	assert.Equal(t, "A-1", events[0].ExternalID)
	assert.True(t, events[0].TotalPrice.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, "A-2", events[1].ExternalID)
}

func TestHTTPClient_ErrorHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "token vencido", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := marketplace.NewHTTPClient(time.Second)
	_, err := c.FetchOrdersSince(context.Background(), &entity.Marketplace{ID: "mp", APIURL: srv.URL}, time.Time{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "token vencido")
}

func TestHTTPClient_SinURL(t *testing.T) {
	c := marketplace.NewHTTPClient(0)
	_, err := c.FetchOrdersSince(context.Background(), &entity.Marketplace{ID: "mp"}, time.Time{})
	require.Error(t, err)
}

func TestHTTPClient_RespetaContexto(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	c := marketplace.NewHTTPClient(5 * time.Second)
	_, err := c.FetchOrdersSince(ctx, &entity.Marketplace{ID: "mp", APIURL: srv.URL}, time.Time{})
	require.Error(t, err)
}
