package coinmarketcap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"cryptoetl/internal/crypto/market"
)

const apiKeyHeader = "X-CMC_PRO_API_KEY"

type RESTClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewRESTClient creates a client for the CoinMarketCap Pro API (baseURL like
// "https://pro-api.coinmarketcap.com/v1"). The key is sent on every request.
func NewRESTClient(baseURL, apiKey string, timeout time.Duration) *RESTClient {
	return &RESTClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *RESTClient) HTTPClient() *http.Client {
	return c.httpClient
}

// GetListingsLatest fetches the top listings by market cap, starting at rank start (1-based),
// with figures quoted in convert. Entries are returned in upstream order.
func (c *RESTClient) GetListingsLatest(ctx context.Context, start, limit int, convert string) ([]market.RawRecord, error) {
	params := url.Values{}
	params.Set("start", strconv.Itoa(start))
	params.Set("limit", strconv.Itoa(limit))
	params.Set("convert", convert)
	endpoint := c.baseURL + "/cryptocurrency/listings/latest?" + params.Encode()

	// Construct the GET request with context for timeout/cancel support
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(apiKeyHeader, c.apiKey)

	// Execute the HTTP request
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	var body ListingsResponse
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	decodeErr := dec.Decode(&body)

	// Check HTTP status code
	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && body.Status.ErrorMessage != "" {
			return nil, fmt.Errorf("coinmarketcap error: status=%d code=%d: %s",
				resp.StatusCode, body.Status.ErrorCode, body.Status.ErrorMessage)
		}
		rest, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("coinmarketcap error: status=%d %s", resp.StatusCode, rest)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode response: %w", decodeErr)
	}
	if body.Status.ErrorCode != 0 {
		return nil, fmt.Errorf("coinmarketcap error: code=%d: %s", body.Status.ErrorCode, body.Status.ErrorMessage)
	}

	return ToRawRecords(body.Data, convert), nil
}

// ToRawRecords flattens listings into raw records using the quote for convert.
// A listing without that quote yields a record with empty market fields.
func ToRawRecords(listings []Listing, convert string) []market.RawRecord {
	out := make([]market.RawRecord, 0, len(listings))
	for _, l := range listings {
		q := l.Quote[convert]
		out = append(out, market.RawRecord{
			ID:               l.ID,
			Name:             l.Name,
			Symbol:           l.Symbol,
			Price:            q.Price,
			MarketCap:        q.MarketCap,
			PercentChange24h: q.PercentChange24h,
			Volume24h:        q.Volume24h,
		})
	}
	return out
}
