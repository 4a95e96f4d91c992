package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type compositeClient struct {
	base string
	http *http.Client
}

func newCompositeClient(base string) *compositeClient {
	return &compositeClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

// apiError is a non-2xx answer from the composite.
type apiError struct {
	Status        int
	Code          string   `json:"error"`
	Message       string   `json:"message"`
	FailedDomains []string `json:"failedDomains"`
}

func (e *apiError) Error() string {
	msg := fmt.Sprintf("composite answered %d %s", e.Status, e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if len(e.FailedDomains) > 0 {
		msg += " (failed domains: " + strings.Join(e.FailedDomains, ", ") + ")"
	}
	return msg
}

func (c *compositeClient) GetProduct(ctx context.Context, key string, delay, faultPercent int) ([]byte, error) {
	q := url.Values{}
	if delay > 0 {
		q.Set("delay", strconv.Itoa(delay))
	}
	if faultPercent > 0 {
		q.Set("faultPercent", strconv.Itoa(faultPercent))
	}
	path := "/composite/" + url.PathEscape(key)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *compositeClient) CreateProduct(ctx context.Context, body []byte) error {
	if !json.Valid(body) {
		return fmt.Errorf("product document is not valid JSON")
	}
	_, err := c.do(ctx, http.MethodPost, "/composite", body)
	return err
}

func (c *compositeClient) DeleteProduct(ctx context.Context, key string) error {
	_, err := c.do(ctx, http.MethodDelete, "/composite/"+url.PathEscape(key), nil)
	return err
}

func (c *compositeClient) Resilience(ctx context.Context) ([]byte, error) {
	return c.do(ctx, http.MethodGet, "/composite/resilience", nil)
}

func (c *compositeClient) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		apiErr := &apiError{Status: resp.StatusCode}
		_ = json.Unmarshal(out, apiErr)
		return nil, apiErr
	}
	return out, nil
}
