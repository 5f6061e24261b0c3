package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"finview/internal/core"
	ports "finview/internal/sheets"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const (
	DefaultTotalsRange = "I5:K5"
	DefaultRowsRange   = "A3:D999"
)

// Options configures a Client. Only SpreadsheetID is required.
type Options struct {
	SpreadsheetID string
	SheetName     string
	TotalsRange   string
	RowsRange     string

	// MaxRetries bounds retries of 5xx and 429 responses.
	MaxRetries int
	RetryWait  time.Duration

	// Endpoint overrides the Sheets API base URL, mostly for tests.
	Endpoint string

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client reads the ledger spreadsheet on behalf of the signed-in user. It
// holds no credentials: the caller's access token is attached per request.
type Client struct {
	spreadsheetID string
	totalsRange   string
	rowsRange     string
	endpoint      string
	base          *http.Client
	logger        *slog.Logger
}

// Ensure interface conformance
var _ ports.LedgerReader = (*Client)(nil)

// New builds a Client whose transport retries transient failures.
func New(opts Options) (*Client, error) {
	id := strings.TrimSpace(opts.SpreadsheetID)
	if id == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if opts.TotalsRange == "" {
		opts.TotalsRange = DefaultTotalsRange
	}
	if opts.RowsRange == "" {
		opts.RowsRange = DefaultRowsRange
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = newHTTPClientWithPooling()
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "sheets")

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = opts.HTTPClient
	retryClient.RetryMax = opts.MaxRetries
	if opts.RetryWait > 0 {
		retryClient.RetryWaitMin = opts.RetryWait
		retryClient.RetryWaitMax = 4 * opts.RetryWait
	}
	retryClient.Logger = logger
	// Hand the last response to the API client so status codes survive.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		spreadsheetID: id,
		totalsRange:   a1Range(opts.SheetName, opts.TotalsRange),
		rowsRange:     a1Range(opts.SheetName, opts.RowsRange),
		endpoint:      opts.Endpoint,
		base:          retryClient.StandardClient(),
		logger:        logger,
	}, nil
}

// newHTTPClientWithPooling creates an HTTP client for the Sheets API with
// connection pooling and bounded timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// ReadLedger fetches the totals row and the transaction rows in one
// batchGet call. Rows are returned top to bottom as the sheet stores them.
func (c *Client) ReadLedger(ctx context.Context, accessToken string) (core.RawLedger, error) {
	if strings.TrimSpace(accessToken) == "" {
		return core.RawLedger{}, ports.ErrUnauthorized
	}

	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return core.RawLedger{}, fmt.Errorf("sheets service: %w", err)
	}

	start := time.Now()
	resp, err := svc.Spreadsheets.Values.BatchGet(c.spreadsheetID).
		Ranges(c.totalsRange, c.rowsRange).
		MajorDimension("ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return core.RawLedger{}, classify(err, c.totalsRange, c.rowsRange)
	}
	if len(resp.ValueRanges) != 2 {
		return core.RawLedger{}, fmt.Errorf("batch get %s,%s: expected 2 value ranges, got %d",
			c.totalsRange, c.rowsRange, len(resp.ValueRanges))
	}

	raw := core.RawLedger{}
	if tv := resp.ValueRanges[0].Values; len(tv) > 0 {
		raw.Totals = toStrings(tv[0])
	}
	raw.Rows = make([][]string, 0, len(resp.ValueRanges[1].Values))
	for _, row := range resp.ValueRanges[1].Values {
		raw.Rows = append(raw.Rows, toStrings(row))
	}

	c.logger.DebugContext(ctx, "Ledger fetched",
		"operation", "read",
		"rows", len(raw.Rows),
		"duration_ms", time.Since(start).Milliseconds())
	return raw, nil
}

func (c *Client) service(ctx context.Context, accessToken string) (*gsheet.Service, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	hc := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, c.base), ts)

	opts := []goption.ClientOption{goption.WithHTTPClient(hc)}
	if c.endpoint != "" {
		opts = append(opts, goption.WithEndpoint(c.endpoint))
	}
	return gsheet.NewService(ctx, opts...)
}

// classify maps API failures onto port errors. Rejected credentials become
// ErrUnauthorized; everything else is wrapped with the ranges requested.
func classify(err error, ranges ...string) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s", ports.ErrUnauthorized, gerr.Message)
		}
	}
	return fmt.Errorf("batch get %s: %w", strings.Join(ranges, ","), err)
}

// a1Range prefixes rng with the sheet name, quoting names that are not plain
// identifiers. An empty sheet name targets the first sheet.
func a1Range(sheet, rng string) string {
	sheet = strings.TrimSpace(sheet)
	if sheet == "" {
		return rng
	}
	if needsQuoting(sheet) {
		sheet = "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
	}
	return sheet + "!" + rng
}

func needsQuoting(name string) bool {
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return true
		}
	}
	return false
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
