package util

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
)

// Download performs a GET request and returns the whole body.
// A non-2xx status is returned as a RequestError.
func Download(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// Check response code
	if resp.StatusCode <= 199 || resp.StatusCode >= 300 {
		return nil, RequestError{URL: url, Status: resp.Status, StatusCode: resp.StatusCode}
	}

	return io.ReadAll(resp.Body)
}

// DownloadJSON performs a GET request and unmarshals the body into v.
// Decoding failures are reported as ShapeMismatchError.
func DownloadJSON(ctx context.Context, client *http.Client, url string, v any) error {
	raw, err := Download(ctx, client, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return ShapeMismatchError{URL: url, Reason: err.Error()}
	}
	return nil
}

// PostJSON sends body as a JSON POST request and unmarshals the
// response into v.
func PostJSON(ctx context.Context, client *http.Client, url string, body any, v any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode <= 199 || resp.StatusCode >= 300 {
		return RequestError{URL: url, Status: resp.Status, StatusCode: resp.StatusCode}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return ShapeMismatchError{URL: url, Reason: err.Error()}
	}
	return nil
}
