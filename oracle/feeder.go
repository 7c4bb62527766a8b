package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lendingpool/crypto"
)

// HTTPDoer abstracts http.Client for ease of testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

const defaultCoinGeckoEndpoint = "https://api.coingecko.com/api/v3/simple/price"

var priceScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(PriceDecimals), nil)

// CoinGeckoFeed fetches USD quotes from the public CoinGecko simple price API
// and normalises them to the oracle's 8-decimal integer representation.
type CoinGeckoFeed struct {
	client   HTTPDoer
	endpoint string
}

// NewCoinGeckoFeed constructs the feed. A nil client falls back to
// http.DefaultClient; an empty endpoint uses the public API.
func NewCoinGeckoFeed(client HTTPDoer, endpoint string) *CoinGeckoFeed {
	ep := strings.TrimSpace(endpoint)
	if ep == "" {
		ep = defaultCoinGeckoEndpoint
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &CoinGeckoFeed{client: client, endpoint: ep}
}

// FetchUSD returns the USD price for a CoinGecko asset identifier, floored to
// 8 decimals.
func (f *CoinGeckoFeed) FetchUSD(ctx context.Context, id string) (*big.Int, error) {
	if f == nil {
		return nil, ErrNotConfigured
	}
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return nil, fmt.Errorf("oracle: feed id required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint, nil)
	if err != nil {
		return nil, err
	}
	values := url.Values{}
	values.Set("ids", id)
	values.Set("vs_currencies", "usd")
	req.URL.RawQuery = values.Encode()

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("oracle: feed status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	var payload map[string]map[string]json.Number
	if err := decoder.Decode(&payload); err != nil {
		return nil, fmt.Errorf("oracle: feed decode: %w", err)
	}
	entry, ok := payload[id]
	if !ok {
		return nil, fmt.Errorf("oracle: feed quote missing for %s", id)
	}
	raw, ok := entry["usd"]
	if !ok {
		return nil, fmt.Errorf("oracle: feed usd quote missing for %s", id)
	}
	rat, ok := new(big.Rat).SetString(raw.String())
	if !ok || rat.Sign() <= 0 {
		return nil, fmt.Errorf("oracle: feed invalid quote %q for %s", raw.String(), id)
	}

	scaled := new(big.Int).Mul(rat.Num(), priceScale)
	return scaled.Quo(scaled, rat.Denom()), nil
}

// FeedAsset binds a registered asset to its external feed identifier.
type FeedAsset struct {
	Asset  crypto.Address
	FeedID string
}

// Feeder periodically refreshes oracle quotes from an external feed. Fetch
// failures for one asset do not block the others; the previous quote simply
// stays in place until the next round succeeds.
type Feeder struct {
	oracle   *Oracle
	adminCap crypto.AdminCap
	feed     *CoinGeckoFeed
	assets   []FeedAsset
	interval time.Duration
	logger   *slog.Logger
}

// NewFeeder wires a refresh loop over the given assets. The interval is
// clamped to a one-second minimum.
func NewFeeder(priceOracle *Oracle, adminCap crypto.AdminCap, feed *CoinGeckoFeed, assets []FeedAsset, interval time.Duration, logger *slog.Logger) *Feeder {
	if interval < time.Second {
		interval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Feeder{
		oracle:   priceOracle,
		adminCap: adminCap,
		feed:     feed,
		assets:   assets,
		interval: interval,
		logger:   logger,
	}
}

// Run refreshes once immediately, then on every tick until the context is
// cancelled.
func (f *Feeder) Run(ctx context.Context) {
	if f == nil || f.oracle == nil || f.feed == nil || len(f.assets) == 0 {
		return
	}
	f.refresh(ctx)
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.refresh(ctx)
		}
	}
}

func (f *Feeder) refresh(ctx context.Context) {
	for _, asset := range f.assets {
		price, err := f.feed.FetchUSD(ctx, asset.FeedID)
		if err != nil {
			f.logger.Warn("price refresh failed", "feedId", asset.FeedID, "asset", asset.Asset.String(), slog.Any("error", err))
			continue
		}
		if err := f.oracle.SetPrice(f.adminCap, asset.Asset, price); err != nil {
			f.logger.Warn("price update rejected", "asset", asset.Asset.String(), slog.Any("error", err))
			continue
		}
		f.logger.Debug("price refreshed", "asset", asset.Asset.String(), "price", price.String())
	}
}
