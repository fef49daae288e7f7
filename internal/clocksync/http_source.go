package clocksync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPSource reads the server clock from a running auction API. With an
// AuctionID it uses the auction timer endpoint, which also carries the live
// deadline; without one it falls back to GET /time.
type HTTPSource struct {
	baseURL   string
	auctionID string
	client    *http.Client
}

func NewHTTPSource(baseURL, auctionID string) *HTTPSource {
	return &HTTPSource{
		baseURL:   strings.TrimRight(baseURL, "/"),
		auctionID: auctionID,
		client:    &http.Client{Timeout: 5 * time.Second},
	}
}

type timerResponse struct {
	ServerNow time.Time `json:"server_now"`
	EndsAt    time.Time `json:"auction_end_at"`
	Status    string    `json:"auction_status"`
}

func (h *HTTPSource) ServerTime(ctx context.Context) (Reading, error) {
	endpoint := "/time"
	if h.auctionID != "" {
		endpoint = "/auctions/" + url.PathEscape(h.auctionID) + "/timer"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+endpoint, nil)
	if err != nil {
		return Reading{}, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return Reading{}, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Reading{}, fmt.Errorf("API returned status code: %d, response: %s", resp.StatusCode, string(body))
	}

	var tr timerResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return Reading{}, fmt.Errorf("failed to decode timer: %w", err)
	}
	if tr.ServerNow.IsZero() {
		return Reading{}, fmt.Errorf("timer response without server_now")
	}
	return Reading{
		ServerNow: tr.ServerNow,
		EndsAt:    tr.EndsAt,
		Closed:    tr.Status == "ended" || tr.Status == "cancelled",
	}, nil
}
