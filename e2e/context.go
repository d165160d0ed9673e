package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TestContext holds per-scenario state shared by the step packages.
type TestContext struct {
	BaseURL string
	Token   string

	client      *http.Client
	useToken    bool
	lastStatus  int
	lastBody    []byte
	lastHeaders http.Header
	statuses    []int
}

// NewTestContext targets a running leitstand at baseURL.
func NewTestContext(baseURL, token string) *TestContext {
	return &TestContext{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Reset clears state between scenarios.
func (tc *TestContext) Reset() {
	tc.useToken = false
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.lastHeaders = nil
	tc.statuses = nil
}

func (tc *TestContext) UseToken(enabled bool) { tc.useToken = enabled }

func (tc *TestContext) POST(path string, body []byte) error {
	return tc.do(http.MethodPost, path, body)
}

func (tc *TestContext) GET(path string) error {
	return tc.do(http.MethodGet, path, nil)
}

func (tc *TestContext) do(method, path string, body []byte) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, tc.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tc.useToken {
		req.Header.Set("X-Auth", tc.Token)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	tc.lastBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	tc.lastStatus = resp.StatusCode
	tc.lastHeaders = resp.Header
	tc.statuses = append(tc.statuses, resp.StatusCode)
	return nil
}

func (tc *TestContext) GetLastResponseStatus() int { return tc.lastStatus }
func (tc *TestContext) GetLastResponseBody() []byte { return tc.lastBody }
func (tc *TestContext) GetLastResponseHeader(k string) string {
	if tc.lastHeaders == nil {
		return ""
	}
	return tc.lastHeaders.Get(k)
}

// GetStatuses returns every status code seen in the scenario, in order.
func (tc *TestContext) GetStatuses() []int { return tc.statuses }

// GetResponseField reads a top-level field of a JSON response body.
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var body map[string]any
	if err := json.Unmarshal(tc.lastBody, &body); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}
	v, ok := body[field]
	if !ok {
		return nil, fmt.Errorf("field %q not in response", field)
	}
	return v, nil
}
