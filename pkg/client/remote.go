package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/sourcing-backend/pkg/errors"
	"github.com/angelmondragon/sourcing-backend/pkg/types"
)

const (
	defaultTimeout          = 10 * time.Second
	responseBodyLimit int64 = 1 << 20
	errorBodyLimit    int64 = 1024
)

var errBaseURLRequired = errors.New("sourcing api base url is required")

// Remote is the typed HTTP client for the sourcing API.
type Remote struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// Option configures optional Remote behavior.
type Option func(*Remote)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Remote) {
		if client != nil {
			r.httpClient = client
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Remote) {
		if timeout > 0 {
			r.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithToken sets the bearer token sent on every request.
func WithToken(token string) Option {
	return func(r *Remote) {
		r.token = strings.TrimSpace(token)
	}
}

// NewRemote builds a Remote for baseURL.
func NewRemote(baseURL string, opts ...Option) (*Remote, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	remote := &Remote{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(remote)
		}
	}
	return remote, nil
}

// CreateRequirement posts a new requirement under idempotencyKey.
func (r *Remote) CreateRequirement(ctx context.Context, in CreateRequirementInput, idempotencyKey string) (Requirement, error) {
	body, err := r.do(ctx, http.MethodPost, "/v1/requirements", in, idempotencyKey)
	if err != nil {
		return Requirement{}, err
	}
	return requirementFromBody(body)
}

// SubmitQuote posts a quote against requirementID under idempotencyKey.
func (r *Remote) SubmitQuote(ctx context.Context, requirementID string, in SubmitQuoteInput, idempotencyKey string) (Quote, error) {
	path := fmt.Sprintf("/v1/requirements/%s/quotes", url.PathEscape(strings.TrimSpace(requirementID)))
	body, err := r.do(ctx, http.MethodPost, path, in, idempotencyKey)
	if err != nil {
		return Quote{}, err
	}
	f, err := decodeObject(body)
	if err != nil {
		return Quote{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode quote response")
	}
	quote, err := normalizeQuote(f)
	if err != nil {
		return Quote{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "normalize quote response")
	}
	return quote, nil
}

// GetRequirement reads one requirement.
func (r *Remote) GetRequirement(ctx context.Context, id string) (Requirement, error) {
	body, err := r.do(ctx, http.MethodGet, "/v1/requirements/"+url.PathEscape(strings.TrimSpace(id)), nil, "")
	if err != nil {
		return Requirement{}, err
	}
	return requirementFromBody(body)
}

// ListMyRequirements returns the calling buyer's requirements.
func (r *Remote) ListMyRequirements(ctx context.Context) ([]Requirement, error) {
	body, err := r.do(ctx, http.MethodGet, "/v1/buyer/requirements", nil, "")
	if err != nil {
		return nil, err
	}
	items, err := decodeList(body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode requirement list")
	}
	out := make([]Requirement, 0, len(items))
	for _, item := range items {
		req, err := normalizeRequirement(item)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "normalize requirement")
		}
		out = append(out, req)
	}
	return out, nil
}

// ListMyQuotes returns the calling merchant's quotes.
func (r *Remote) ListMyQuotes(ctx context.Context) ([]Quote, error) {
	body, err := r.do(ctx, http.MethodGet, "/v1/merchant/quotes", nil, "")
	if err != nil {
		return nil, err
	}
	items, err := decodeList(body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode quote list")
	}
	out := make([]Quote, 0, len(items))
	for _, item := range items {
		q, err := normalizeQuote(item)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "normalize quote")
		}
		out = append(out, q)
	}
	return out, nil
}

func requirementFromBody(body []byte) (Requirement, error) {
	f, err := decodeObject(body)
	if err != nil {
		return Requirement{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode requirement response")
	}
	req, err := normalizeRequirement(f)
	if err != nil {
		return Requirement{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "normalize requirement response")
	}
	return req, nil
}

func (r *Remote) do(ctx context.Context, method, path string, payload any, idempotencyKey string) ([]byte, error) {
	if r == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "sourcing client not configured")
	}

	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "encode request body")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sourcing api unreachable")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, classifyResponse(resp)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyLimit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read response")
	}
	return body, nil
}

// classifyResponse maps an error response to a typed error. Anything at or
// above 500 is a transport failure regardless of the body.
func classifyResponse(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))

	if resp.StatusCode >= http.StatusInternalServerError {
		return pkgerrors.Wrap(pkgerrors.CodeDependency,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))),
			"sourcing api failed")
	}

	var envelope types.ErrorEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Code != "" {
		typed := pkgerrors.New(pkgerrors.Code(envelope.Error.Code), envelope.Error.Message)
		if envelope.Error.Reason != "" {
			typed = typed.WithReason(pkgerrors.Reason(envelope.Error.Reason))
		}
		if envelope.Error.Details != nil {
			typed = typed.WithDetails(envelope.Error.Details)
		}
		return typed
	}

	code := pkgerrors.CodeValidation
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		code = pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		code = pkgerrors.CodeForbidden
	case http.StatusNotFound:
		code = pkgerrors.CodeNotFound
	case http.StatusConflict:
		code = pkgerrors.CodeConflict
	case http.StatusUnprocessableEntity:
		code = pkgerrors.CodeStateConflict
	case http.StatusTooManyRequests:
		code = pkgerrors.CodeRateLimit
	}
	return pkgerrors.New(code, fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
}

// IsTransport reports whether err means the API could not be reached or
// could not answer. Such submissions are kept locally and replayed later.
func IsTransport(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		return false
	}
	switch typed.Code() {
	case pkgerrors.CodeDependency, pkgerrors.CodeRateLimit, pkgerrors.CodeInternal:
		return true
	default:
		return false
	}
}
