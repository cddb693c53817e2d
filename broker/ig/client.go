// Package ig is a REST client for the IG dealing API. It implements
// broker.Broker on top of the session, markets, prices and OTC position
// endpoints.
package ig

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/scalper/broker"
	"github.com/rustyeddy/scalper/market"
	"github.com/rustyeddy/scalper/quota"
)

const (
	// DemoURL is the gateway of IG's demo environment.
	DemoURL = "https://demo-api.ig.com/gateway/deal"
	// LiveURL is the gateway of IG's live environment.
	LiveURL = "https://api.ig.com/gateway/deal"

	headerAPIKey   = "X-IG-API-KEY"
	headerCST      = "CST"
	headerSecurity = "X-SECURITY-TOKEN"
	headerVersion  = "VERSION"
	headerOverride = "X-HTTP-Method-Override"

	maxErrorBody = 400
)

// Config holds the account credentials and client behaviour.
type Config struct {
	BaseURL   string
	APIKey    string
	Username  string
	Password  string
	AccountID string
	Timeout   time.Duration
	Cache     CacheConfig
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.httpClient = h } }

// WithQuota records every request and historical datapoint in t.
func WithQuota(t *quota.Tracker) Option { return func(c *Client) { c.quota = t } }

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = l } }

// Client is safe for concurrent use. Session tokens are refreshed in place.
type Client struct {
	baseURL    string
	apiKey     string
	username   string
	password   string
	httpClient *http.Client
	quota      *quota.Tracker
	log        *zap.Logger
	cacheCfg   CacheConfig
	prices     *priceCache
	now        func() time.Time

	mu          sync.Mutex
	cst         string
	xst         string
	accountID   string
	accountType string
}

var _ broker.Broker = (*Client)(nil)

// New creates a client. It does not contact the broker; call Login first.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DemoURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	c := &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		username:    cfg.Username,
		password:    cfg.Password,
		accountID:   cfg.AccountID,
		accountType: "CFD",
		cacheCfg:    cfg.Cache,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	if cfg.Cache.Enabled {
		ttl := max(cfg.Cache.StaleLimit, time.Hour)
		pc, err := newPriceCache(ttl)
		if err != nil {
			return nil, fmt.Errorf("price cache: %w", err)
		}
		c.prices = pc
	}
	return c, nil
}

// AccountID returns the active account, known after Login.
func (c *Client) AccountID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accountID
}

// AccountType returns the active account type, "CFD" unless the broker says otherwise.
func (c *Client) AccountType() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accountType
}

// Close releases the price cache.
func (c *Client) Close() {
	if c.prices != nil {
		c.prices.close()
	}
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (r *response) ok(codes ...int) bool {
	if len(codes) == 0 {
		return r.status >= 200 && r.status < 300
	}
	for _, code := range codes {
		if r.status == code {
			return true
		}
	}
	return false
}

func (r *response) decode(out any) error {
	if out == nil || len(bytes.TrimSpace(r.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) headers(version string) http.Header {
	h := http.Header{}
	h.Set(headerAPIKey, c.apiKey)
	h.Set("Accept", "application/json; charset=UTF-8")
	h.Set("Content-Type", "application/json")

	c.mu.Lock()
	if c.cst != "" {
		h.Set(headerCST, c.cst)
	}
	if c.xst != "" {
		h.Set(headerSecurity, c.xst)
	}
	c.mu.Unlock()

	if version != "" {
		h.Set(headerVersion, version)
	}
	return h
}

// send performs one round trip and counts it against the quota.
func (c *Client) send(ctx context.Context, method, path, version string, payload []byte, extra http.Header) (*response, error) {
	u := c.baseURL + path
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header = c.headers(version)
	for k, vs := range extra {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	if c.quota != nil {
		c.quota.RecordCall(method, u, resp.Header)
	}
	return &response{status: resp.StatusCode, header: resp.Header, body: b}, nil
}

// request sends in as JSON. On 401 it refreshes the session tokens once and
// replays the request.
func (c *Client) request(ctx context.Context, method, path, version string, in any, extra http.Header) (*response, error) {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		payload = b
	}

	resp, err := c.send(ctx, method, path, version, payload, extra)
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusUnauthorized {
		return resp, nil
	}

	c.log.Warn("unauthorized, refreshing session",
		zap.String("method", method),
		zap.String("path", path),
		zap.String("body", truncate(resp.body)),
	)
	if !c.refresh(ctx) {
		return resp, nil
	}
	return c.send(ctx, method, path, version, payload, extra)
}

func (c *Client) refresh(ctx context.Context) bool {
	resp, err := c.send(ctx, http.MethodPost, "/session/refresh-token", "1", nil, nil)
	if err != nil {
		c.log.Warn("session refresh failed", zap.Error(err))
		return false
	}
	if !resp.ok(http.StatusOK, http.StatusCreated) {
		c.log.Warn("session refresh rejected", zap.Int("status", resp.status))
		return false
	}
	c.setTokens(resp.header.Get(headerCST), resp.header.Get(headerSecurity))
	return true
}

func (c *Client) setTokens(cst, xst string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cst != "" {
		c.cst = cst
	}
	if xst != "" {
		c.xst = xst
	}
}

func (c *Client) call(ctx context.Context, method, path, version string, in, out any) error {
	resp, err := c.request(ctx, method, path, version, in, nil)
	if err != nil {
		return err
	}
	if !resp.ok() {
		return apiError(method, path, resp)
	}
	return resp.decode(out)
}

func apiError(method, path string, resp *response) error {
	e := &broker.APIError{Method: method, Path: path, Status: resp.status, Body: truncate(resp.body)}
	var body apiErrorBody
	if json.Unmarshal(resp.body, &body) == nil {
		e.Code = body.ErrorCode
	}
	return e
}

func truncate(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody]
	}
	return s
}

// Login opens a session, switches to the configured account (or the
// session's current one) and looks up the account type.
func (c *Client) Login(ctx context.Context) error {
	creds := map[string]string{"identifier": c.username, "password": c.password}
	payload, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	resp, err := c.send(ctx, http.MethodPost, "/session", "2", payload, nil)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if !resp.ok(http.StatusOK, http.StatusCreated) {
		return fmt.Errorf("login: %w", apiError(http.MethodPost, "/session", resp))
	}
	cst, xst := resp.header.Get(headerCST), resp.header.Get(headerSecurity)
	if cst == "" || xst == "" {
		return errors.New("login: missing CST/X-SECURITY-TOKEN")
	}
	c.mu.Lock()
	c.cst, c.xst = cst, xst
	accountID := c.accountID
	c.mu.Unlock()

	if accountID == "" {
		var sess sessionDetails
		if err := c.call(ctx, http.MethodGet, "/session", "1", nil, &sess); err != nil {
			c.log.Warn("session details", zap.Error(err))
		}
		accountID = sess.CurrentAccountID
	}

	if accountID != "" {
		body := map[string]any{"accountId": accountID, "defaultAccount": true}
		resp, err := c.request(ctx, http.MethodPut, "/session", "1", body, nil)
		switch {
		case err != nil:
			c.log.Warn("switch account", zap.Error(err))
		case !resp.ok(http.StatusOK, http.StatusNoContent):
			c.log.Warn("switch account",
				zap.Int("status", resp.status),
				zap.String("body", truncate(resp.body)),
			)
		}
	}

	accountType := ""
	var accts accountsResponse
	if err := c.call(ctx, http.MethodGet, "/accounts", "1", nil, &accts); err != nil {
		c.log.Warn("list accounts", zap.Error(err))
	}
	for _, a := range accts.Accounts {
		if a.AccountID == accountID {
			accountType = a.AccountType
			break
		}
	}

	c.mu.Lock()
	c.accountID = accountID
	if accountType != "" {
		c.accountType = accountType
	}
	accountType = c.accountType
	c.mu.Unlock()

	c.log.Info("logged in", zap.String("account", accountID), zap.String("account_type", accountType))
	return nil
}

// Logout closes the session and forgets the tokens.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.send(ctx, http.MethodDelete, "/session", "1", nil, nil)
	c.mu.Lock()
	c.cst, c.xst = "", ""
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	if !resp.ok() {
		return fmt.Errorf("logout: %w", apiError(http.MethodDelete, "/session", resp))
	}
	return nil
}

// SearchMarkets looks up markets by free-text term.
func (c *Client) SearchMarkets(ctx context.Context, term string) ([]broker.MarketSummary, error) {
	var out searchResponse
	path := "/markets?searchTerm=" + url.QueryEscape(term)
	if err := c.call(ctx, http.MethodGet, path, "1", nil, &out); err != nil {
		return nil, fmt.Errorf("search markets: %w", err)
	}
	return out.summaries(), nil
}

// Instrument fetches market details, falling back to version 3 when
// version 4 is not available for the epic.
func (c *Client) Instrument(ctx context.Context, epic string) (market.Instrument, error) {
	path := "/markets/" + url.PathEscape(epic)
	var d marketDetails
	err := c.call(ctx, http.MethodGet, path, "4", nil, &d)
	if errors.Is(err, broker.ErrNotFound) {
		err = c.call(ctx, http.MethodGet, path, "3", nil, &d)
	}
	if err != nil {
		return market.Instrument{}, fmt.Errorf("market details %s: %w", epic, err)
	}
	return d.instrument(epic), nil
}

// RecentBars returns the last n bars. Bars are served from the cache when
// they were fetched within the current bar period, or when the weekly
// historical allowance is nearly spent and the cache is not too stale.
func (c *Client) RecentBars(ctx context.Context, epic string, res market.Resolution, n int) ([]market.Bar, error) {
	if res == "" {
		res = market.Minute
	}
	res = market.Resolution(strings.ToUpper(string(res)))
	key := priceKey(epic, res)

	if c.prices != nil {
		if e, ok := c.prices.get(key); ok && len(e.bars) >= max(1, n) && c.cacheUsable(e, res) {
			return tail(e.bars, n), nil
		}
	}

	var out pricesResponse
	path := fmt.Sprintf("/prices/%s/%s/%d", url.PathEscape(epic), res, n)
	if err := c.call(ctx, http.MethodGet, path, "2", nil, &out); err != nil {
		return nil, fmt.Errorf("recent prices %s: %w", epic, err)
	}
	if c.quota != nil {
		c.quota.RecordHistPoints(len(out.Prices))
	}
	bars := out.bars()
	if c.prices != nil {
		c.prices.set(key, cachedBars{bars: bars, fetched: c.now()})
	}
	return tail(bars, n), nil
}

func (c *Client) cacheUsable(e cachedBars, res market.Resolution) bool {
	age := c.now().Sub(e.fetched)
	fresh := max(time.Second, res.Period()*95/100)
	if age < fresh {
		return true
	}
	if c.quota == nil {
		return false
	}
	lowQuota := c.quota.HistRemaining() <= max(0, c.cacheCfg.HistReserve)
	return lowQuota && age <= c.cacheCfg.StaleLimit
}

func (c *Client) defaultExpiry() string {
	if strings.EqualFold(c.AccountType(), "CFD") || c.AccountType() == "" {
		return "-"
	}
	return "DFB"
}

// OpenMarket submits a fill-or-kill market order and fetches its confirmation.
// A deal the broker refuses is returned with an ErrRejected error; a deal
// whose confirmation cannot be fetched is returned with ErrUnconfirmed.
func (c *Client) OpenMarket(ctx context.Context, req broker.OrderRequest) (broker.Confirmation, error) {
	expiry := req.Expiry
	if expiry == "" {
		expiry = c.defaultExpiry()
	}
	payload := map[string]any{
		"epic":           req.Epic,
		"expiry":         expiry,
		"direction":      string(req.Direction),
		"size":           req.Size,
		"orderType":      "MARKET",
		"timeInForce":    "FILL_OR_KILL",
		"forceOpen":      true,
		"guaranteedStop": false,
		"currencyCode":   req.Currency,
		"limitDistance":  req.LimitDistance,
	}
	if req.StopDistance > 0 {
		payload["stopDistance"] = req.StopDistance
	}

	var ref dealReference
	if err := c.call(ctx, http.MethodPost, "/positions/otc", "2", payload, &ref); err != nil {
		return broker.Confirmation{}, fmt.Errorf("open position: %w", err)
	}

	conf, err := c.confirm(ctx, ref.DealReference)
	if err != nil {
		return broker.Confirmation{DealRef: ref.DealReference}, fmt.Errorf("open position: %w: %w", broker.ErrUnconfirmed, err)
	}
	if !conf.Accepted() {
		return conf, fmt.Errorf("open position: %w: %s %s", broker.ErrRejected, conf.Status, conf.Reason)
	}
	return conf, nil
}

func (c *Client) confirm(ctx context.Context, ref string) (broker.Confirmation, error) {
	var out confirmResponse
	if err := c.call(ctx, http.MethodGet, "/confirms/"+url.PathEscape(ref), "1", nil, &out); err != nil {
		return broker.Confirmation{}, fmt.Errorf("deal confirm %s: %w", ref, err)
	}
	conf := out.confirmation()
	if conf.DealRef == "" {
		conf.DealRef = ref
	}
	return conf, nil
}

// AmendPosition updates the limit and stop of an open position.
func (c *Client) AmendPosition(ctx context.Context, dealID string, a broker.Amendment) error {
	payload := map[string]any{"trailingStop": a.Trailing}
	if a.LimitLevel != nil {
		payload["limitLevel"] = *a.LimitLevel
	}
	if a.Trailing {
		if a.StopLevel == nil || a.TrailingDistance <= 0 || a.TrailingIncrement <= 0 {
			return errors.New("amend position: trailing stop requires stop level, distance and increment")
		}
		payload["trailingStopDistance"] = a.TrailingDistance
		payload["trailingStopIncrement"] = a.TrailingIncrement
	}
	if a.StopLevel != nil {
		payload["stopLevel"] = *a.StopLevel
	}

	path := "/positions/otc/" + url.PathEscape(dealID)
	if err := c.call(ctx, http.MethodPut, path, "2", payload, nil); err != nil {
		return fmt.Errorf("amend position %s: %w", dealID, err)
	}
	return nil
}

// Positions lists the open positions of the account.
func (c *Client) Positions(ctx context.Context) ([]broker.Position, error) {
	var out positionsResponse
	if err := c.call(ctx, http.MethodGet, "/positions", "2", nil, &out); err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	return out.positions(), nil
}

// ClosePosition closes at market. It nets the position off with an opposite
// order when the epic and currency are known, then tries the close endpoint
// and finally the same call tunnelled through POST.
func (c *Client) ClosePosition(ctx context.Context, req broker.CloseRequest) (string, error) {
	opposite := req.Direction.Opposite()

	if req.Epic != "" && req.Currency != "" {
		expiry := req.Expiry
		if expiry == "" {
			expiry = c.defaultExpiry()
		}
		rev := map[string]any{
			"epic":         req.Epic,
			"expiry":       expiry,
			"direction":    string(opposite),
			"size":         req.Size,
			"orderType":    "MARKET",
			"timeInForce":  "FILL_OR_KILL",
			"forceOpen":    false,
			"currencyCode": req.Currency,
		}
		resp, err := c.request(ctx, http.MethodPost, "/positions/otc", "2", rev, nil)
		if err != nil {
			return "", fmt.Errorf("close position %s: %w", req.DealID, err)
		}
		if resp.ok(http.StatusOK, http.StatusCreated) {
			return dealRef(resp), nil
		}
		c.log.Warn("net-off close refused",
			zap.String("deal_id", req.DealID),
			zap.Error(apiError(http.MethodPost, "/positions/otc", resp)),
		)
	}

	payload := map[string]any{
		"dealId":      req.DealID,
		"direction":   string(opposite),
		"size":        req.Size,
		"orderType":   "MARKET",
		"timeInForce": "FILL_OR_KILL",
	}
	resp, err := c.request(ctx, http.MethodDelete, "/positions/otc", "1", payload, nil)
	if err != nil {
		return "", fmt.Errorf("close position %s: %w", req.DealID, err)
	}
	if resp.ok(http.StatusOK, http.StatusCreated) {
		return dealRef(resp), nil
	}
	deleteErr := apiError(http.MethodDelete, "/positions/otc", resp)

	override := http.Header{headerOverride: []string{http.MethodDelete}}
	resp, err = c.request(ctx, http.MethodPost, "/positions/otc", "1", payload, override)
	if err == nil && resp.ok(http.StatusOK, http.StatusCreated) {
		return dealRef(resp), nil
	}
	return "", fmt.Errorf("close position %s: %w", req.DealID, deleteErr)
}

func dealRef(resp *response) string {
	var ref dealReference
	if resp.decode(&ref) != nil {
		return ""
	}
	return ref.DealReference
}
