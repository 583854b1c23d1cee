package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TestContext carries one scenario's caller, last response and the
// identities and assets it created. Identities and asset tags are suffixed
// with a per-scenario run id so scenarios never collide on a shared server.
type TestContext struct {
	BaseURL string
	Client  *http.Client

	signingKey string
	issuer     string
	root       string

	runID      string
	caller     string
	lastStatus int
	lastBody   []byte
	assets     map[string]string
}

// NewTestContext reads the target server from the environment:
// AIDTRACE_E2E_BASE_URL, AIDTRACE_JWT_SIGNING_KEY, AIDTRACE_JWT_ISSUER and
// AIDTRACE_ROOT_IDENTITY.
func NewTestContext() *TestContext {
	return &TestContext{
		BaseURL:    strings.TrimRight(envOr("AIDTRACE_E2E_BASE_URL", "http://localhost:8080"), "/"),
		Client:     &http.Client{Timeout: 10 * time.Second},
		signingKey: envOr("AIDTRACE_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		issuer:     envOr("AIDTRACE_JWT_ISSUER", "aidtrace"),
		root:       envOr("AIDTRACE_ROOT_IDENTITY", "root"),
	}
}

// Reset prepares the context for a new scenario.
func (tc *TestContext) Reset() {
	tc.runID = uuid.NewString()[:8]
	tc.caller = ""
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.assets = map[string]string{}
}

// Identity maps a scenario name to its run-scoped identity. "root" is the
// server's bootstrap administrator and is never suffixed.
func (tc *TestContext) Identity(name string) string {
	if name == "root" {
		return tc.root
	}
	return name + "-" + tc.runID
}

// SetCaller selects who signs the next requests. An empty name sends none.
func (tc *TestContext) SetCaller(name string) {
	if name == "" {
		tc.caller = ""
		return
	}
	tc.caller = tc.Identity(name)
}

func (tc *TestContext) Caller() string { return tc.caller }

// AssetTag is the run-scoped QR payload for a scenario alias.
func (tc *TestContext) AssetTag(alias string) string { return alias + "-" + tc.runID }

func (tc *TestContext) RememberAsset(alias, id string) { tc.assets[alias] = id }

func (tc *TestContext) Asset(alias string) (string, error) {
	id, ok := tc.assets[alias]
	if !ok {
		return "", fmt.Errorf("asset %q was not created in this scenario", alias)
	}
	return id, nil
}

// Request sends a JSON request as the current caller. A nil body sends none.
func (tc *TestContext) Request(method, path string, body any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, tc.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tc.caller != "" {
		token, err := tc.token(tc.caller)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := tc.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	tc.lastStatus = resp.StatusCode
	tc.lastBody, err = io.ReadAll(resp.Body)
	return err
}

// RequestAs sends a request as name without changing the current caller.
func (tc *TestContext) RequestAs(name, method, path string, body any) error {
	prev := tc.caller
	tc.caller = tc.Identity(name)
	defer func() { tc.caller = prev }()
	return tc.Request(method, path, body)
}

func (tc *TestContext) Status() int { return tc.lastStatus }

// Field resolves a dotted path ("asset.released_funds") in the last JSON
// response. Numbers come back as json.Number.
func (tc *TestContext) Field(path string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(tc.lastBody))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w (body %q)", err, tc.lastBody)
	}
	cur := doc
	for _, key := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q: %q is not an object", path, key)
		}
		if cur, ok = obj[key]; !ok {
			return nil, fmt.Errorf("field %q missing in %s", path, tc.lastBody)
		}
	}
	return cur, nil
}

func (tc *TestContext) Body() string { return string(tc.lastBody) }

func (tc *TestContext) token(subject string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    tc.issuer,
		Audience:  []string{"aidtrace-ledger"},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(5 * time.Minute)),
		ID:        uuid.NewString(),
	})
	return token.SignedString([]byte(tc.signingKey))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
