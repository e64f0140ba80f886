package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/sourcing-backend/pkg/logger"
)

const (
	defaultRetryAttempts = 3
	defaultRetryBase     = 250 * time.Millisecond
	maxRetryDelay        = 5 * time.Second
)

type remoteAPI interface {
	CreateRequirement(ctx context.Context, in CreateRequirementInput, idempotencyKey string) (Requirement, error)
	SubmitQuote(ctx context.Context, requirementID string, in SubmitQuoteInput, idempotencyKey string) (Quote, error)
	GetRequirement(ctx context.Context, id string) (Requirement, error)
}

// WorkspaceParams wires a Workspace.
type WorkspaceParams struct {
	Remote        remoteAPI
	Store         *PendingStore
	Logger        *logger.Logger
	RetryAttempts int
	RetryBase     time.Duration
}

// Workspace submits to the API and falls back to the pending store when the
// API cannot be reached. Validation and state errors are returned as-is.
type Workspace struct {
	remote    remoteAPI
	store     *PendingStore
	logg      *logger.Logger
	attempts  int
	retryBase time.Duration
}

// Rejection is a pending submission the server refused during reconcile.
type Rejection struct {
	LocalID string
	Kind    string
	Err     error
}

// ReconcileReport summarizes one Reconcile pass.
type ReconcileReport struct {
	Synced   []string
	Rejected []Rejection
	Deferred []string
}

// NewWorkspace validates params.
func NewWorkspace(p WorkspaceParams) (*Workspace, error) {
	if p.Remote == nil {
		return nil, errors.New("remote is required")
	}
	if p.Store == nil {
		return nil, errors.New("pending store is required")
	}
	if p.Logger == nil {
		return nil, errors.New("logger is required")
	}
	attempts := p.RetryAttempts
	if attempts <= 0 {
		attempts = defaultRetryAttempts
	}
	base := p.RetryBase
	if base <= 0 {
		base = defaultRetryBase
	}
	return &Workspace{
		remote:    p.Remote,
		store:     p.Store,
		logg:      p.Logger,
		attempts:  attempts,
		retryBase: base,
	}, nil
}

// CreateRequirement submits in remotely, keeping it locally on transport failure.
func (w *Workspace) CreateRequirement(ctx context.Context, in CreateRequirementInput) (RequirementResult, error) {
	key := uuid.NewString()
	req, err := w.remote.CreateRequirement(ctx, in, key)
	if err == nil {
		w.cache(ctx, KindRequirement, req.ID, req)
		return RequirementResult{Requirement: req}, nil
	}
	if !IsTransport(err) {
		return RequirementResult{}, err
	}

	body, encErr := json.Marshal(in)
	if encErr != nil {
		return RequirementResult{}, fmt.Errorf("encode pending requirement: %w", encErr)
	}
	sub := &PendingSubmission{ID: uuid.New(), Kind: KindRequirement, IdempotencyKey: key, Body: string(body)}
	local := localRequirement(sub.ID, in)
	if saveErr := w.store.SavePending(ctx, sub, local); saveErr != nil {
		return RequirementResult{}, errors.Join(err, saveErr)
	}

	w.logg.Warn(w.logg.WithFields(ctx, map[string]any{
		"local_id": sub.ID.String(),
		"cause":    err.Error(),
	}), "requirement saved locally")
	return RequirementResult{Requirement: local, SavedLocally: true, Notice: SavedLocallyNotice}, nil
}

// SubmitQuote submits in remotely, keeping it locally on transport failure.
func (w *Workspace) SubmitQuote(ctx context.Context, requirementID string, in SubmitQuoteInput) (QuoteResult, error) {
	requirementID = strings.TrimSpace(requirementID)
	if requirementID == "" {
		return QuoteResult{}, errors.New("requirement id is required")
	}

	key := uuid.NewString()
	quote, err := w.remote.SubmitQuote(ctx, requirementID, in, key)
	if err == nil {
		w.cache(ctx, KindQuote, quote.ID, quote)
		return QuoteResult{Quote: quote}, nil
	}
	if !IsTransport(err) {
		return QuoteResult{}, err
	}

	body, encErr := json.Marshal(in)
	if encErr != nil {
		return QuoteResult{}, fmt.Errorf("encode pending quote: %w", encErr)
	}
	sub := &PendingSubmission{
		ID:             uuid.New(),
		Kind:           KindQuote,
		RequirementID:  &requirementID,
		IdempotencyKey: key,
		Body:           string(body),
	}
	local := localQuote(sub.ID, requirementID, in)
	if saveErr := w.store.SavePending(ctx, sub, local); saveErr != nil {
		return QuoteResult{}, errors.Join(err, saveErr)
	}

	w.logg.Warn(w.logg.WithFields(ctx, map[string]any{
		"local_id":       sub.ID.String(),
		"requirement_id": requirementID,
		"cause":          err.Error(),
	}), "quote saved locally")
	return QuoteResult{Quote: local, SavedLocally: true, Notice: SavedLocallyNotice}, nil
}

// Requirement reads id from the API and refreshes the cache. When the API is
// unreachable the cached copy is returned and fromCache is true.
func (w *Workspace) Requirement(ctx context.Context, id string) (req Requirement, fromCache bool, err error) {
	req, err = w.remote.GetRequirement(ctx, id)
	if err == nil {
		w.cache(ctx, KindRequirement, req.ID, req)
		return req, false, nil
	}
	if !IsTransport(err) {
		return Requirement{}, false, err
	}
	var cached Requirement
	found, cacheErr := w.store.GetRecord(ctx, KindRequirement, id, &cached)
	if cacheErr != nil {
		return Requirement{}, false, errors.Join(err, cacheErr)
	}
	if !found {
		return Requirement{}, false, err
	}
	return cached, true, nil
}

// Pending lists submissions awaiting reconcile.
func (w *Workspace) Pending(ctx context.Context) ([]PendingSubmission, error) {
	return w.store.ListPending(ctx)
}

// CachedEntry is one cached requirement or quote as last seen locally.
type CachedEntry struct {
	ID      string          `json:"id"`
	Pending bool            `json:"pending"`
	Record  json.RawMessage `json:"record"`
}

// Cached lists the local cache for kind, entries still awaiting reconcile first.
func (w *Workspace) Cached(ctx context.Context, kind string) ([]CachedEntry, error) {
	if kind != KindRequirement && kind != KindQuote {
		return nil, fmt.Errorf("unknown record kind %q", kind)
	}
	rows, err := w.store.Records(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("list cached %s records: %w", kind, err)
	}
	out := make([]CachedEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, CachedEntry{ID: row.ID, Pending: row.Pending, Record: json.RawMessage(row.Data)})
	}
	return out, nil
}

// Reconcile replays every pending submission. Accepted ones are replaced by
// the server record, rejected ones are dropped and reported, and ones that
// still cannot reach the API stay pending. A quote on a requirement that was
// itself saved locally is sent with the requirement's server id, waits while
// that requirement is deferred, and is dropped when it was rejected.
func (w *Workspace) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	pending, err := w.store.ListPending(ctx)
	if err != nil {
		return report, fmt.Errorf("list pending: %w", err)
	}
	// requirements first so their quotes can be repointed in the same pass
	slices.SortStableFunc(pending, func(a, b PendingSubmission) int {
		return kindRank(a.Kind) - kindRank(b.Kind)
	})

	// keyed by local requirement id; a nil cause means deferred
	serverIDs := map[string]string{}
	unsynced := map[string]error{}

	for _, sub := range pending {
		logCtx := w.logg.WithFields(ctx, map[string]any{
			"local_id": sub.ID.String(),
			"kind":     sub.Kind,
		})
		if sub.Kind == KindQuote && sub.RequirementID != nil {
			parent := *sub.RequirementID
			if serverID, ok := serverIDs[parent]; ok {
				sub.RequirementID = &serverID
			} else if cause, ok := unsynced[parent]; ok {
				if cause == nil {
					report.Deferred = append(report.Deferred, sub.ID.String())
					w.logg.Warn(logCtx, "pending quote waits for its requirement")
					continue
				}
				if dropErr := w.store.Drop(ctx, sub); dropErr != nil {
					return report, dropErr
				}
				report.Rejected = append(report.Rejected, Rejection{
					LocalID: sub.ID.String(),
					Kind:    sub.Kind,
					Err:     fmt.Errorf("requirement %s was rejected: %w", parent, cause),
				})
				w.logg.Warn(logCtx, "pending quote dropped with its requirement")
				continue
			}
		}

		var (
			serverID string
			record   any
		)
		err := retry.Do(ctx, w.backoff(), func(ctx context.Context) error {
			id, rec, err := w.replay(ctx, sub)
			if err != nil {
				if IsTransport(err) {
					return retry.RetryableError(err)
				}
				return err
			}
			serverID, record = id, rec
			return nil
		})

		switch {
		case err == nil:
			if resolveErr := w.store.Resolve(ctx, sub, serverID, record); resolveErr != nil {
				return report, resolveErr
			}
			if sub.Kind == KindRequirement {
				serverIDs[sub.ID.String()] = serverID
			}
			report.Synced = append(report.Synced, serverID)
			w.logg.Info(logCtx, "pending submission synced")
		case ctx.Err() != nil:
			return report, ctx.Err()
		case IsTransport(err):
			if recErr := w.store.RecordFailure(ctx, sub.ID, err); recErr != nil {
				return report, recErr
			}
			if sub.Kind == KindRequirement {
				unsynced[sub.ID.String()] = nil
			}
			report.Deferred = append(report.Deferred, sub.ID.String())
			w.logg.Warn(logCtx, "pending submission deferred")
		default:
			if dropErr := w.store.Drop(ctx, sub); dropErr != nil {
				return report, dropErr
			}
			if sub.Kind == KindRequirement {
				unsynced[sub.ID.String()] = err
			}
			report.Rejected = append(report.Rejected, Rejection{LocalID: sub.ID.String(), Kind: sub.Kind, Err: err})
			w.logg.Warn(logCtx, "pending submission rejected")
		}
	}
	return report, nil
}

func kindRank(kind string) int {
	if kind == KindRequirement {
		return 0
	}
	return 1
}

func (w *Workspace) replay(ctx context.Context, sub PendingSubmission) (string, any, error) {
	switch sub.Kind {
	case KindRequirement:
		var in CreateRequirementInput
		if err := json.Unmarshal([]byte(sub.Body), &in); err != nil {
			return "", nil, fmt.Errorf("decode pending requirement: %w", err)
		}
		req, err := w.remote.CreateRequirement(ctx, in, sub.IdempotencyKey)
		if err != nil {
			return "", nil, err
		}
		return req.ID, req, nil
	case KindQuote:
		if sub.RequirementID == nil {
			return "", nil, errors.New("pending quote has no requirement id")
		}
		var in SubmitQuoteInput
		if err := json.Unmarshal([]byte(sub.Body), &in); err != nil {
			return "", nil, fmt.Errorf("decode pending quote: %w", err)
		}
		quote, err := w.remote.SubmitQuote(ctx, *sub.RequirementID, in, sub.IdempotencyKey)
		if err != nil {
			return "", nil, err
		}
		return quote.ID, quote, nil
	default:
		return "", nil, fmt.Errorf("unknown pending kind %q", sub.Kind)
	}
}

func (w *Workspace) backoff() retry.Backoff {
	b := retry.NewExponential(w.retryBase)
	b = retry.WithCappedDuration(maxRetryDelay, b)
	return retry.WithMaxRetries(uint64(w.attempts-1), b)
}

func (w *Workspace) cache(ctx context.Context, kind, id string, record any) {
	if id == "" {
		return
	}
	if err := w.store.PutRecord(ctx, kind, id, record); err != nil {
		w.logg.Warn(w.logg.WithFields(ctx, map[string]any{"kind": kind, "id": id, "error": err.Error()}), "cache write failed")
	}
}

func localRequirement(id uuid.UUID, in CreateRequirementInput) Requirement {
	status := "active"
	if in.IsDraft {
		status = "draft"
	}
	return Requirement{
		ID:               id.String(),
		Grade:            in.Grade,
		Origin:           in.Origin,
		RequiredQuantity: parseQuantity(in.RequiredQuantity),
		MinimumQuantity:  parseQuantity(in.MinimumQuantity),
		ExpectedPrice:    in.ExpectedPrice,
		AllowLowerBid:    in.AllowLowerBid,
		DeliveryLocation: in.DeliveryLocation,
		DeliveryCity:     in.DeliveryCity,
		DeliveryCountry:  in.DeliveryCountry,
		DeliveryDeadline: in.DeliveryDeadline,
		Specifications:   in.Specifications,
		IsDraft:          in.IsDraft,
		Status:           status,
		Pending:          true,
	}
}

func localQuote(id uuid.UUID, requirementID string, in SubmitQuoteInput) Quote {
	qty := parseQuantity(in.Quantity)
	return Quote{
		ID:            id.String(),
		RequirementID: requirementID,
		Quantity:      qty,
		Price:         in.Price,
		Total:         qty.Mul(in.Price),
		Remarks:       in.Remarks,
		Status:        "new",
		Pending:       true,
	}
}

// parseQuantity is best effort; the server does the authoritative validation.
func parseQuantity(raw string) decimal.Decimal {
	d, err := toDecimal(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}
