package connectors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradeexecutor/src/gateway"
	"tradeexecutor/src/mapper"
)

const (
	moomooRetryAttempts   = 3
	moomooRetryBaseDelay  = 300 * time.Millisecond
	moomooRetryMaxBackoff = 2 * time.Second

	moomooSearchPath = "/api/headfoot-search"
	moomooChainPath  = "/quote-api/quote-v2/get-option-chain"
	moomooKlinePath  = "/quote-api/quote-v2/get-kline"
	moomooQuotePath  = "/quote-api/quote-v2/get-stock-quote"

	// US option instrument coordinates on the provider.
	moomooMarketTypeUS       = 2
	moomooMarketCodeOption   = "41"
	moomooSpreadCodeOption   = "81"
	moomooInstrumentOption   = "8"
	moomooSubInstrumentOpt   = "8002"
	moomooKlineTypeDaily     = "2"
	moomooOptionStrikeFactor = 1000
)

var ErrMoomooNotFound = errors.New("moomoo: instrument not found")

// QuoteTokenSupplier produces the per-request quote-token header from the
// request parameters. Its scheme is owned elsewhere.
type QuoteTokenSupplier interface {
	QuoteToken(params map[string]string) string
}

type QuoteTokenFunc func(params map[string]string) string

func (f QuoteTokenFunc) QuoteToken(params map[string]string) string { return f(params) }

// MoomooClient is the secondary quote provider used when the broker has no
// usable price.
type MoomooClient struct {
	http      *resty.Client
	csrfToken string
	cookies   string
	tokens    QuoteTokenSupplier
	now       func() time.Time
}

func NewMoomooClient(cfg Config, tokens QuoteTokenSupplier) *MoomooClient {
	baseURL := cfg.MoomooBaseURL
	if baseURL == "" {
		baseURL = "https://www.moomoo.com"
	}
	timeout := cfg.MoomooTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(moomooRetryAttempts - 1).
		SetRetryWaitTime(moomooRetryBaseDelay).
		SetRetryMaxWaitTime(moomooRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	return &MoomooClient{
		http:      httpClient,
		csrfToken: cfg.MoomooCSRFToken,
		cookies:   cfg.MoomooCookies,
		tokens:    tokens,
		now:       time.Now,
	}
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}

	code := r.StatusCode()
	if code >= 500 && code <= 599 {
		return true
	}
	return code == 429 || code == 408
}

type moomooEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// get issues a signed GET. params carry the string form used for the token.
func (c *MoomooClient) get(ctx context.Context, path string, params map[string]string, referer string) ([]byte, error) {
	req := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetHeader("Accept", "application/json, text/plain, */*").
		SetHeader("Referer", referer)

	if c.cookies != "" {
		req.SetHeader("Cookie", c.cookies)
	}
	if c.csrfToken != "" {
		req.SetHeader("futu-x-csrf-token", c.csrfToken)
	}
	if c.tokens != nil {
		req.SetHeader("quote-token", c.tokens.QuoteToken(params))
	}

	logger.WithFields(map[string]interface{}{
		"connector": "moomoo",
		"path":      path,
	}).Debug("Moomoo HTTP request")

	resp, err := req.Get(path)
	if err != nil {
		return nil, fmt.Errorf("moomoo %s: %w", path, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("moomoo %s: HTTP %d: %s", path, resp.StatusCode(), string(resp.Body()))
	}
	return resp.Body(), nil
}

func (c *MoomooClient) getData(ctx context.Context, path string, params map[string]string, referer string, out interface{}) error {
	raw, err := c.get(ctx, path, params, referer)
	if err != nil {
		return err
	}

	var env moomooEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("moomoo %s: decode: %w", path, err)
	}
	if env.Code != 0 {
		return fmt.Errorf("moomoo %s: code=%d msg=%s", path, env.Code, env.Message)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("moomoo %s: decode data: %w", path, err)
	}
	return nil
}

func (c *MoomooClient) stamp() string {
	return strconv.FormatInt(c.now().UnixMilli(), 10)
}

type moomooStockQuote struct {
	Price               interface{} `json:"price"`
	PriceNominal        interface{} `json:"priceNominal"`
	PriceBid            interface{} `json:"priceBid"`
	PriceAsk            interface{} `json:"priceAsk"`
	UnderlyingStockInfo *struct {
		Price interface{} `json:"price"`
	} `json:"underlyingStockInfo"`
}

// OptionDetail fetches the option quote by provider ids. marketType <= 0
// means US.
func (c *MoomooClient) OptionDetail(ctx context.Context, optionID, underlyingStockID string, marketType int) (*gateway.Quote, error) {
	if optionID == "" || underlyingStockID == "" {
		return nil, errors.New("moomoo: option id and underlying id are required")
	}
	if marketType <= 0 {
		marketType = moomooMarketTypeUS
	}

	params := map[string]string{
		"stockId":           optionID,
		"marketType":        strconv.Itoa(marketType),
		"marketCode":        moomooMarketCodeOption,
		"spreadCode":        moomooSpreadCodeOption,
		"underlyingStockId": underlyingStockID,
		"instrumentType":    moomooInstrumentOption,
		"subInstrumentType": moomooSubInstrumentOpt,
		"_":                 c.stamp(),
	}

	var data moomooStockQuote
	if err := c.getData(ctx, moomooQuotePath, params, "https://www.moomoo.com/hans/options/", &data); err != nil {
		return nil, err
	}

	price := parseProviderPrice(data.Price)
	if price.IsZero() {
		price = parseProviderPrice(data.PriceNominal)
	}
	q := &gateway.Quote{
		Last:      price,
		Bid:       parseProviderPrice(data.PriceBid),
		Ask:       parseProviderPrice(data.PriceAsk),
		Timestamp: c.now(),
	}
	if data.UnderlyingStockInfo != nil {
		q.UnderlyingPrice = parseProviderPrice(data.UnderlyingStockInfo.Price)
	}
	return q, nil
}

type moomooSearchStock struct {
	StockID     json.Number `json:"stockId"`
	Symbol      string      `json:"symbol"`
	StockSymbol string      `json:"stockSymbol"`
	MarketType  int         `json:"marketType"`
}

// SearchStock resolves a US ticker to the provider's stock id.
func (c *MoomooClient) SearchStock(ctx context.Context, keyword string) (string, int, error) {
	params := map[string]string{
		"keyword": strings.ToLower(keyword),
		"lang":    "zh-cn",
		"site":    "sg",
	}

	raw, err := c.get(ctx, moomooSearchPath, params, "https://www.moomoo.com/")
	if err != nil {
		return "", 0, err
	}

	var body struct {
		Data struct {
			Stock []moomooSearchStock `json:"stock"`
		} `json:"data"`
		Stock []moomooSearchStock `json:"stock"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", 0, fmt.Errorf("moomoo search: decode: %w", err)
	}

	stocks := body.Data.Stock
	if len(stocks) == 0 {
		stocks = body.Stock
	}

	upper := strings.ToUpper(keyword)
	for _, s := range stocks {
		if s.Symbol == upper+".US" || s.StockSymbol == upper {
			return s.StockID.String(), s.MarketType, nil
		}
	}
	return "", 0, fmt.Errorf("%w: %s", ErrMoomooNotFound, keyword)
}

type moomooChainOption struct {
	OptionID    json.Number `json:"optionId"`
	StrikePrice string      `json:"strikePrice"`
	Code        string      `json:"code"`
}

type moomooChainPair struct {
	CallOption *moomooChainOption `json:"callOption"`
	PutOption  *moomooChainOption `json:"putOption"`
}

// FindOption looks up the option id for a strike on the expiry chain.
func (c *MoomooClient) FindOption(ctx context.Context, stockID string, code OptionCode) (string, error) {
	expiration := "1"
	if !c.now().Before(code.StrikeDate) {
		expiration = "0"
	}

	params := map[string]string{
		"stockId":    stockID,
		"strikeDate": strconv.FormatInt(code.StrikeDate.Unix(), 10),
		"expiration": expiration,
		"_":          c.stamp(),
	}

	var pairs []moomooChainPair
	if err := c.getData(ctx, moomooChainPath, params, "https://www.moomoo.com/", &pairs); err != nil {
		return "", err
	}

	strike := code.Strike.StringFixed(2)
	for _, p := range pairs {
		opt := p.CallOption
		if code.Right == "P" {
			opt = p.PutOption
		}
		if opt != nil && opt.StrikePrice == strike {
			return opt.OptionID.String(), nil
		}
	}
	return "", fmt.Errorf("%w: %s strike %s", ErrMoomooNotFound, code.Underlying, strike)
}

// LatestClose returns the close of the most recent daily kline.
func (c *MoomooClient) LatestClose(ctx context.Context, stockID string, marketType int) (decimal.Decimal, error) {
	if marketType <= 0 {
		marketType = moomooMarketTypeUS
	}

	params := map[string]string{
		"stockId":           stockID,
		"marketType":        strconv.Itoa(marketType),
		"type":              moomooKlineTypeDaily,
		"marketCode":        moomooMarketCodeOption,
		"instrumentType":    moomooInstrumentOption,
		"subInstrumentType": moomooSubInstrumentOpt,
		"_":                 c.stamp(),
	}

	var data struct {
		List []struct {
			C interface{} `json:"c"`
		} `json:"list"`
	}
	if err := c.getData(ctx, moomooKlinePath, params, "https://www.moomoo.com/", &data); err != nil {
		return decimal.Zero, err
	}
	if len(data.List) == 0 {
		return decimal.Zero, fmt.Errorf("%w: no kline for %s", ErrMoomooNotFound, stockID)
	}
	return parseProviderPrice(data.List[len(data.List)-1].C), nil
}

// QuoteBySymbol resolves an option symbol such as TSLA251121P395000.US
// through search, option chain and daily kline.
func (c *MoomooClient) QuoteBySymbol(ctx context.Context, symbol string) (*gateway.Quote, error) {
	code, ok := ParseOptionCode(symbol)
	if !ok {
		return nil, fmt.Errorf("moomoo: unsupported symbol %s", symbol)
	}

	stockID, marketType, err := c.SearchStock(ctx, code.Underlying)
	if err != nil {
		return nil, err
	}

	optionID, err := c.FindOption(ctx, stockID, code)
	if err != nil {
		return nil, err
	}

	last, err := c.LatestClose(ctx, optionID, marketType)
	if err != nil {
		return nil, err
	}

	return &gateway.Quote{Symbol: symbol, Last: last, Timestamp: c.now()}, nil
}

// OptionCode is the parsed form of an OCC style option symbol.
type OptionCode struct {
	Underlying string
	Expiry     string // YYMMDD
	Right      string // C or P
	Strike     decimal.Decimal
	StrikeDate time.Time
}

var optionCodePattern = regexp.MustCompile(`^([A-Z]+)(\d{6})([CP])(\d+)$`)

func ParseOptionCode(symbol string) (OptionCode, bool) {
	code := strings.TrimSuffix(strings.ToUpper(strings.TrimSpace(symbol)), ".US")
	m := optionCodePattern.FindStringSubmatch(code)
	if m == nil {
		return OptionCode{}, false
	}

	year, _ := strconv.Atoi(m[2][0:2])
	month, _ := strconv.Atoi(m[2][2:4])
	day, _ := strconv.Atoi(m[2][4:6])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return OptionCode{}, false
	}

	strikeRaw, err := decimal.NewFromString(m[4])
	if err != nil {
		return OptionCode{}, false
	}

	return OptionCode{
		Underlying: m[1],
		Expiry:     m[2],
		Right:      m[3],
		Strike:     strikeRaw.Div(decimal.NewFromInt(moomooOptionStrikeFactor)),
		// Expiry midnight US Eastern (standard time) expressed in UTC.
		StrikeDate: time.Date(2000+year, time.Month(month), day, 5, 0, 0, 0, time.UTC),
	}, true
}

// parseProviderPrice accepts numbers or strings such as "1,234.50".
func parseProviderPrice(v interface{}) decimal.Decimal {
	if s, ok := v.(string); ok {
		s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
		if s == "" || s == "--" {
			return decimal.Zero
		}
		return mapper.ToDecimal(s)
	}
	return mapper.ToDecimal(v)
}
