// Package fetch implements the shared HTTP client used by workers and the
// robots loader, backed by a Colly collector.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/docs-mirror/internal/crawler"
)

// Config controls client behavior.
type Config struct {
	UserAgent   string
	Timeout     time.Duration
	Retries     int
	Concurrency int
}

// Client fetches single URLs through a cloned Colly collector per
// request. HTTP error statuses are returned as responses; only
// transport-level failures surface as errors (and are retried).
type Client struct {
	base    *colly.Collector
	retry   *retryPolicy
	timeout time.Duration
	logger  *zap.Logger
}

// NewClient constructs a configured Client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.Timeout <= 0 {
		return nil, errors.New("fetch timeout must be > 0")
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	base := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.ParseHTTPErrorResponse(),
	)
	base.AllowURLRevisit = true
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          128,
		MaxIdleConnsPerHost:   32,
		MaxConnsPerHost:       concurrency * 2,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.Timeout)

	return &Client{
		base:    base,
		retry:   newRetryPolicy(cfg.Retries),
		timeout: cfg.Timeout,
		logger:  logger,
	}, nil
}

// Fetch retrieves url, retrying transport errors up to the configured
// budget. The context bounds the whole attempt sequence.
func (c *Client) Fetch(ctx context.Context, url string, headers map[string]string) (crawler.FetchResponse, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		resp, err := c.fetchOnce(ctx, url, headers)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !c.retry.shouldRetry(err, attempt) {
			break
		}
		c.logger.Debug("retrying fetch",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
		if werr := sleepCtx(ctx, c.retry.backoff(attempt)); werr != nil {
			return crawler.FetchResponse{}, werr
		}
	}
	return crawler.FetchResponse{Reason: lastErr.Error()}, fmt.Errorf("fetch %s: %w", url, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, url string, headers map[string]string) (crawler.FetchResponse, error) {
	if err := ctx.Err(); err != nil {
		return crawler.FetchResponse{}, err
	}
	collector := c.base.Clone()
	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	collector.OnRequest(func(r *colly.Request) {
		for k, v := range headers {
			r.Headers.Set(k, v)
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		send(fetchResult{resp: crawler.FetchResponse{
			Status: r.StatusCode,
			Body:   string(r.Body),
			Reason: http.StatusText(r.StatusCode),
		}})
	})
	collector.OnError(func(_ *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		send(fetchResult{err: err})
	})

	if err := collector.Visit(url); err != nil {
		return crawler.FetchResponse{}, err
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return crawler.FetchResponse{}, err
		}
		return res.resp, res.err
	default:
		return crawler.FetchResponse{}, errors.New("fetch produced no result")
	}
}

type fetchResult struct {
	resp crawler.FetchResponse
	err  error
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
