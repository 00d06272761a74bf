package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"consentd/internal/consent/consenttest"
	"consentd/pkg/testutil"
)

// TestContext holds state between test steps
type TestContext struct {
	Harness          *consenttest.Harness
	HTTPClient       *http.Client
	LastResponse     *http.Response
	LastResponseBody []byte
	SessionRef       string
	ConsentID        string
}

// NewTestContext starts a fresh in-process server for one scenario.
func NewTestContext() (*TestContext, error) {
	h, err := consenttest.New(testutil.NewTestPurpose("DATA_SHARING", 365))
	if err != nil {
		return nil, err
	}
	return &TestContext{
		Harness:    h,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (tc *TestContext) Close() {
	if tc.Harness != nil {
		tc.Harness.Close()
	}
}

func (tc *TestContext) guardianHeaders() map[string]string {
	if tc.SessionRef == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + tc.SessionRef}
}

// Do sends a request and stores the response.
func (tc *TestContext) Do(method, path string, body any, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, tc.Harness.URL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}

	tc.LastResponse = resp
	tc.LastResponseBody, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	return nil
}

// GetResponseField extracts a field from the JSON response
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var data map[string]any
	if err := json.Unmarshal(tc.LastResponseBody, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	value, ok := data[field]
	if !ok {
		return nil, fmt.Errorf("field %s not found in response: %s", field, tc.LastResponseBody)
	}
	return value, nil
}

func (tc *TestContext) GetLastResponseStatus() int {
	if tc.LastResponse == nil {
		return 0
	}
	return tc.LastResponse.StatusCode
}
