package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"syscall"
	"time"

	"powderlab/internal/api"
)

// apiClient is a thin JSON client for the station daemon API.
type apiClient struct {
	base  string
	token string
	http  *http.Client
}

func newAPIClient(address, token string) (*apiClient, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, errors.New("daemon API address is not configured; set paths.api_bind or use --api")
	}
	if !strings.Contains(address, "://") {
		address = "http://" + address
	}
	return &apiClient{
		base:  strings.TrimRight(address, "/"),
		token: token,
		http:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// apiError carries the daemon's error payload alongside the HTTP status.
type apiError struct {
	Status  int
	Payload api.ErrorResponse
}

func (e *apiError) Error() string {
	if e.Payload.Deviation != nil {
		return fmt.Sprintf("%s (deviation %.2f%%)", e.Payload.Error, *e.Payload.Deviation)
	}
	return e.Payload.Error
}

func (c *apiClient) get(ctx context.Context, path string, dest any) error {
	return c.do(ctx, http.MethodGet, path, nil, dest)
}

func (c *apiClient) post(ctx context.Context, path string, body, dest any) error {
	return c.do(ctx, http.MethodPost, path, body, dest)
}

func (c *apiClient) delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *apiClient) do(ctx context.Context, method, path string, body, dest any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return wrapDialError(err, c.base)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		payload := api.ErrorResponse{Error: resp.Status}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		return &apiError{Status: resp.StatusCode, Payload: payload}
	}
	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func wrapDialError(err error, base string) error {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("connect to daemon at %s: connection refused; start the daemon with `powderlabd`", base)
	}
	return fmt.Errorf("connect to daemon at %s: %w", base, err)
}
