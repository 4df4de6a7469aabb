package marketdata

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// SSI iBoard group endpoint; returns every listed ticker for the requested
// exchanges in one call.
const priceAPIURL = "https://iboard-query.ssi.com.vn/v2/stock/group/"

const refreshInterval = 1 * time.Minute

// quoteRecord is the subset of the SSI payload the automation needs.
type quoteRecord struct {
	SS string  `json:"ss"` // ticker
	ST string  `json:"st"` // exchange
	MP float64 `json:"mp"` // match price
	RP float64 `json:"rp"` // reference price
}

type priceResponse struct {
	Data []quoteRecord `json:"data"`
}

// Quoter serves latest match prices from an in-memory cache refreshed on
// demand. Safe for concurrent use.
type Quoter struct {
	client    *http.Client
	exchanges []string

	mu        sync.RWMutex
	prices    map[string]decimal.Decimal
	fetchedAt time.Time
}

func NewQuoter() *Quoter {
	return &Quoter{
		client: &http.Client{
			Timeout:   60 * time.Second,
			Transport: &http.Transport{DisableCompression: true},
		},
		exchanges: []string{"hose", "hnx", "upcom"},
		prices:    make(map[string]decimal.Decimal),
	}
}

// LatestPrice returns the most recent match price for the ticker, refreshing
// the cache when it has gone stale. Tickers with no match yet fall back to
// the reference price.
func (q *Quoter) LatestPrice(ticker string) (decimal.Decimal, error) {
	ticker = strings.ToUpper(ticker)

	q.mu.RLock()
	price, ok := q.prices[ticker]
	fresh := time.Since(q.fetchedAt) < refreshInterval
	q.mu.RUnlock()

	if ok && fresh {
		return price, nil
	}

	if err := q.refresh(); err != nil {
		// Serve the stale price rather than nothing.
		if ok {
			return price, nil
		}
		return decimal.Zero, err
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	price, ok = q.prices[ticker]
	if !ok {
		return decimal.Zero, fmt.Errorf("no quote for %s", ticker)
	}
	return price, nil
}

// refresh fetches the full price board and swaps the cache.
func (q *Quoter) refresh() error {
	url := priceAPIURL + strings.Join(q.exchanges, ",")

	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch quotes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("quote API error (status %d): %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var response priceResponse
	if err := json.Unmarshal(body, &response); err != nil {
		// Some deployments return a bare array.
		var records []quoteRecord
		if err2 := json.Unmarshal(body, &records); err2 != nil {
			return fmt.Errorf("failed to parse quote response: %w", err)
		}
		response.Data = records
	}

	prices := make(map[string]decimal.Decimal, len(response.Data))
	for _, rec := range response.Data {
		value := rec.MP
		if value == 0 {
			value = rec.RP
		}
		if value == 0 {
			continue
		}
		prices[strings.ToUpper(rec.SS)] = decimal.NewFromFloat(value)
	}

	q.mu.Lock()
	q.prices = prices
	q.fetchedAt = time.Now()
	q.mu.Unlock()

	log.Printf("Refreshed %d quotes", len(prices))
	return nil
}
