// Package upstream is the outbound signed-request client for the commerce
// backend. Every request carries the app credentials plus an HMAC-SHA256
// signature over appID + timestamp + nonce + body.
package upstream

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/akirafn/commerce-gateway/internal/auth"
)

const requestTimeout = 30 * time.Second

const nonceAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

type Client struct {
	baseURL   string
	appID     string
	appKey    string
	appSecret string

	httpClient *http.Client
	now        func() time.Time
}

type Config struct {
	BaseURL   string
	AppID     string
	AppKey    string
	AppSecret string
}

func NewClient(cfg Config) *Client {
	return &Client{
		baseURL:   cfg.BaseURL,
		appID:     cfg.AppID,
		appKey:    cfg.AppKey,
		appSecret: cfg.AppSecret,
		httpClient: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		now: time.Now,
	}
}

// Response carries the upstream status and raw body for pass-through.
type Response struct {
	Status int
	Body   []byte
}

// Do issues a signed request to the upstream backend.
func (c *Client) Do(ctx context.Context, method, endpoint string, query url.Values, body []byte) (*Response, error) {
	timestamp := strconv.FormatInt(c.now().UTC().Unix(), 10)
	nonce, err := newNonce()
	if err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	payload := "{}"
	if len(body) > 0 {
		payload = string(body)
	}
	signature := auth.SignHMAC(c.appSecret, c.appID+timestamp+nonce+payload)

	target := c.baseURL + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-App-ID", c.appID)
	req.Header.Set("X-App-Key", c.appKey)
	req.Header.Set("X-Timestamp", timestamp)
	req.Header.Set("X-Nonce", nonce)
	req.Header.Set("X-Signature", signature)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read upstream response: %w", err)
	}

	return &Response{Status: resp.StatusCode, Body: respBody}, nil
}

// newNonce returns a 26-character base36 string.
func newNonce() (string, error) {
	raw := make([]byte, 26)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	for i := range raw {
		raw[i] = nonceAlphabet[int(raw[i])%len(nonceAlphabet)]
	}
	return string(raw), nil
}
