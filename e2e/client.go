// Package e2e drives a running dgtt server through the Gherkin scenarios
// under features/. Set DGTT_E2E_URL to run them.
package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestContext is the per-scenario HTTP client. It mints a bearer token for
// the current role and remembers identifiers between steps.
type TestContext struct {
	baseURL    string
	signingKey []byte
	issuer     string
	client     *http.Client

	role       string
	lastStatus int
	lastBody   []byte
	saved      map[string]string
}

func NewTestContext() *TestContext {
	return &TestContext{
		baseURL:    strings.TrimRight(os.Getenv("DGTT_E2E_URL"), "/"),
		signingKey: []byte(envOr("DGTT_E2E_SIGNING_KEY", "dev-secret-key-change-in-production")),
		issuer:     envOr("DGTT_E2E_ISSUER", "dgtt"),
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Reset clears state between scenarios.
func (tc *TestContext) Reset() {
	tc.role = "DGTT"
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.saved = map[string]string{}
}

func (tc *TestContext) SetRole(role string) { tc.role = strings.ToUpper(role) }

func (tc *TestContext) Role() string { return tc.role }

func (tc *TestContext) token() (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  "e2e-" + strings.ToLower(tc.role),
		"role": tc.role,
		"iss":  tc.issuer,
		"iat":  now.Unix(),
		"exp":  now.Add(5 * time.Minute).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tc.signingKey)
}

// Do sends a request as the current role. Placeholders like {candidate_id}
// in path and body are replaced with remembered values.
func (tc *TestContext) Do(ctx context.Context, method, path, body string) error {
	path = tc.Expand(path)
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(tc.Expand(body))
	}
	req, err := http.NewRequestWithContext(ctx, method, tc.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	token, err := tc.token()
	if err != nil {
		return fmt.Errorf("mint token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	tc.lastStatus = resp.StatusCode
	tc.lastBody, err = io.ReadAll(resp.Body)
	return err
}

// MustSucceed is Do followed by a 2xx check.
func (tc *TestContext) MustSucceed(ctx context.Context, method, path, body string) error {
	if err := tc.Do(ctx, method, path, body); err != nil {
		return err
	}
	if tc.lastStatus/100 != 2 {
		return fmt.Errorf("%s %s: status %d: %s", method, tc.Expand(path), tc.lastStatus, tc.lastBody)
	}
	return nil
}

func (tc *TestContext) Status() int { return tc.lastStatus }

func (tc *TestContext) Body() []byte { return tc.lastBody }

// Field reads a top-level or dotted field from the last JSON response.
func (tc *TestContext) Field(path string) (string, error) {
	var doc any
	if err := json.Unmarshal(tc.lastBody, &doc); err != nil {
		return "", fmt.Errorf("response is not JSON: %w", err)
	}
	for _, part := range strings.Split(path, ".") {
		obj, ok := doc.(map[string]any)
		if !ok {
			return "", fmt.Errorf("field %q: not an object at %q", path, part)
		}
		if doc, ok = obj[part]; !ok {
			return "", fmt.Errorf("field %q missing in %s", path, tc.lastBody)
		}
	}
	switch v := doc.(type) {
	case string:
		return v, nil
	case nil:
		return "", nil
	default:
		raw, _ := json.Marshal(v)
		return string(raw), nil
	}
}

func (tc *TestContext) Remember(name, value string) { tc.saved[name] = value }

func (tc *TestContext) Expand(s string) string {
	for k, v := range tc.saved {
		s = strings.ReplaceAll(s, "{"+k+"}", v)
	}
	return s
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
