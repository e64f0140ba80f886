package client

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/sourcing-backend/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/sourcing-backend/pkg/errors"
	"github.com/angelmondragon/sourcing-backend/pkg/logger"
)

type fakeRemote struct {
	createErrs []error
	submitErrs []error
	getErr     error
	getResult  Requirement
	keys       []string
	quotedOn   []string
	calls      int
}

func (f *fakeRemote) next(errs *[]error) error {
	f.calls++
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func (f *fakeRemote) CreateRequirement(_ context.Context, in CreateRequirementInput, key string) (Requirement, error) {
	f.keys = append(f.keys, key)
	if err := f.next(&f.createErrs); err != nil {
		return Requirement{}, err
	}
	return Requirement{ID: "srv-req-1", Grade: in.Grade, Origin: in.Origin, Status: "active"}, nil
}

func (f *fakeRemote) SubmitQuote(_ context.Context, requirementID string, in SubmitQuoteInput, key string) (Quote, error) {
	f.keys = append(f.keys, key)
	f.quotedOn = append(f.quotedOn, requirementID)
	if err := f.next(&f.submitErrs); err != nil {
		return Quote{}, err
	}
	return Quote{ID: "srv-quote-1", RequirementID: requirementID, Quantity: decimal.RequireFromString(in.Quantity), Price: in.Price, Status: "new"}, nil
}

func (f *fakeRemote) GetRequirement(_ context.Context, id string) (Requirement, error) {
	f.calls++
	if f.getErr != nil {
		return Requirement{}, f.getErr
	}
	return f.getResult, nil
}

func transportErr() error {
	return pkgerrors.New(pkgerrors.CodeDependency, "sourcing api unreachable")
}

func newTestWorkspace(t *testing.T, remote *fakeRemote) (*Workspace, *PendingStore) {
	t.Helper()
	store, err := NewPendingStore(dbtest.Open(t))
	require.NoError(t, err)
	ws, err := NewWorkspace(WorkspaceParams{
		Remote:        remote,
		Store:         store,
		Logger:        logger.New(logger.Options{ServiceName: "client-test", Level: zerolog.Disabled, Output: io.Discard}),
		RetryAttempts: 2,
		RetryBase:     time.Millisecond,
	})
	require.NoError(t, err)
	return ws, store
}

func quoteInput() SubmitQuoteInput {
	return SubmitQuoteInput{Quantity: "1,250", Price: decimal.NewFromInt(8100)}
}

func TestNewWorkspaceValidation(t *testing.T) {
	_, err := NewWorkspace(WorkspaceParams{})
	assert.Error(t, err)
}

func TestSubmitQuoteOnlineCachesServerRecord(t *testing.T) {
	remote := &fakeRemote{}
	ws, store := newTestWorkspace(t, remote)

	res, err := ws.SubmitQuote(context.Background(), "r-1", quoteInput())
	require.NoError(t, err)
	assert.False(t, res.SavedLocally)
	assert.Equal(t, "srv-quote-1", res.Quote.ID)

	var cached Quote
	found, err := store.GetRecord(context.Background(), KindQuote, "srv-quote-1", &cached)
	require.NoError(t, err)
	assert.True(t, found)
	assert.False(t, cached.Pending)
}

func TestSubmitQuoteTransportFailureSavesLocally(t *testing.T) {
	remote := &fakeRemote{submitErrs: []error{transportErr()}}
	ws, store := newTestWorkspace(t, remote)

	res, err := ws.SubmitQuote(context.Background(), "r-1", quoteInput())
	require.NoError(t, err)
	assert.True(t, res.SavedLocally)
	assert.Equal(t, SavedLocallyNotice, res.Notice)
	assert.True(t, res.Quote.Pending)
	assert.True(t, res.Quote.Quantity.Equal(decimal.NewFromInt(1250)))
	assert.True(t, res.Quote.Total.Equal(decimal.NewFromInt(1250*8100)))

	pending, err := ws.Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, KindQuote, pending[0].Kind)
	assert.Equal(t, remote.keys[0], pending[0].IdempotencyKey)

	records, err := store.Records(context.Background(), KindQuote)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Pending)
	assert.Equal(t, res.Quote.ID, records[0].ID)
}

func TestSubmitQuoteValidationErrorIsNotStored(t *testing.T) {
	rejection := pkgerrors.New(pkgerrors.CodeValidation, "quantity out of range").WithReason("QUANTITY_OUT_OF_RANGE")
	remote := &fakeRemote{submitErrs: []error{rejection}}
	ws, _ := newTestWorkspace(t, remote)

	_, err := ws.SubmitQuote(context.Background(), "r-1", quoteInput())
	assert.ErrorIs(t, err, rejection)

	pending, err := ws.Pending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSubmitQuoteRequiresRequirementID(t *testing.T) {
	ws, _ := newTestWorkspace(t, &fakeRemote{})
	_, err := ws.SubmitQuote(context.Background(), " ", quoteInput())
	assert.Error(t, err)
}

func TestReconcileReplacesLocalEntryWithServerRecord(t *testing.T) {
	remote := &fakeRemote{createErrs: []error{transportErr()}}
	ws, store := newTestWorkspace(t, remote)
	ctx := context.Background()

	res, err := ws.CreateRequirement(ctx, CreateRequirementInput{Grade: "W240", Origin: "india", RequiredQuantity: "500", MinimumQuantity: "100", DeliveryDeadline: "2026-12-01"})
	require.NoError(t, err)
	require.True(t, res.SavedLocally)
	assert.Equal(t, "active", res.Requirement.Status)
	localID := res.Requirement.ID

	report, err := ws.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"srv-req-1"}, report.Synced)
	assert.Empty(t, report.Rejected)
	assert.Empty(t, report.Deferred)
	require.Len(t, remote.keys, 2)
	assert.Equal(t, remote.keys[0], remote.keys[1], "replay reuses the idempotency key")

	var local Requirement
	found, err := store.GetRecord(ctx, KindRequirement, localID, &local)
	require.NoError(t, err)
	assert.False(t, found, "local pending entry is removed")

	var synced Requirement
	found, err = store.GetRecord(ctx, KindRequirement, "srv-req-1", &synced)
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, synced.Pending)
	assert.Equal(t, "W240", synced.Grade)
	assert.True(t, synced.RequiredQuantity.IsZero(), "server record replaces the local one without merging")

	pending, err := ws.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestReconcileDropsRejectedSubmission(t *testing.T) {
	notOpen := pkgerrors.New(pkgerrors.CodeStateConflict, "requirement is not open").WithReason("REQUIREMENT_NOT_OPEN")
	remote := &fakeRemote{submitErrs: []error{transportErr(), notOpen}}
	ws, store := newTestWorkspace(t, remote)
	ctx := context.Background()

	res, err := ws.SubmitQuote(ctx, "r-1", quoteInput())
	require.NoError(t, err)

	report, err := ws.Reconcile(ctx)
	require.NoError(t, err)
	require.Len(t, report.Rejected, 1)
	assert.Equal(t, res.Quote.ID, report.Rejected[0].LocalID)
	assert.ErrorIs(t, report.Rejected[0].Err, notOpen)

	records, err := store.Records(ctx, KindQuote)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestReconcileDefersWhileUnreachable(t *testing.T) {
	remote := &fakeRemote{submitErrs: []error{transportErr(), transportErr(), transportErr()}}
	ws, _ := newTestWorkspace(t, remote)
	ctx := context.Background()

	_, err := ws.SubmitQuote(ctx, "r-1", quoteInput())
	require.NoError(t, err)

	report, err := ws.Reconcile(ctx)
	require.NoError(t, err)
	require.Len(t, report.Deferred, 1)
	assert.Equal(t, 3, remote.calls, "one submit plus two replay attempts")

	pending, err := ws.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)
	require.NotNil(t, pending[0].LastError)
}

func requirementInput() CreateRequirementInput {
	return CreateRequirementInput{Grade: "W240", Origin: "india", RequiredQuantity: "500", MinimumQuantity: "100", DeliveryDeadline: "2026-12-01"}
}

// offlineQuoteOnOfflineRequirement saves a requirement and a quote on it
// while the API is down and returns the requirement's local id.
func offlineQuoteOnOfflineRequirement(t *testing.T, ws *Workspace) string {
	t.Helper()
	ctx := context.Background()
	req, err := ws.CreateRequirement(ctx, requirementInput())
	require.NoError(t, err)
	require.True(t, req.SavedLocally)
	quote, err := ws.SubmitQuote(ctx, req.Requirement.ID, quoteInput())
	require.NoError(t, err)
	require.True(t, quote.SavedLocally)
	return req.Requirement.ID
}

func TestReconcileSendsQuoteWithServerRequirementID(t *testing.T) {
	remote := &fakeRemote{createErrs: []error{transportErr()}, submitErrs: []error{transportErr()}}
	ws, store := newTestWorkspace(t, remote)
	ctx := context.Background()
	localID := offlineQuoteOnOfflineRequirement(t, ws)

	report, err := ws.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"srv-req-1", "srv-quote-1"}, report.Synced)
	assert.Empty(t, report.Rejected)
	assert.Equal(t, []string{localID, "srv-req-1"}, remote.quotedOn)

	var synced Quote
	found, err := store.GetRecord(ctx, KindQuote, "srv-quote-1", &synced)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "srv-req-1", synced.RequirementID)
}

func TestReconcileHoldsQuoteWhileRequirementDeferred(t *testing.T) {
	remote := &fakeRemote{
		createErrs: []error{transportErr(), transportErr(), transportErr()},
		submitErrs: []error{transportErr()},
	}
	ws, _ := newTestWorkspace(t, remote)
	ctx := context.Background()
	offlineQuoteOnOfflineRequirement(t, ws)

	report, err := ws.Reconcile(ctx)
	require.NoError(t, err)
	assert.Len(t, report.Deferred, 2)
	assert.Empty(t, report.Rejected)
	assert.Len(t, remote.quotedOn, 1, "the quote is not replayed against a local id")

	pending, err := ws.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	report, err = ws.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"srv-req-1", "srv-quote-1"}, report.Synced)
	assert.Equal(t, "srv-req-1", remote.quotedOn[len(remote.quotedOn)-1])
}

func TestReconcileDropsQuoteOfRejectedRequirement(t *testing.T) {
	invalid := pkgerrors.New(pkgerrors.CodeValidation, "price exceeds ceiling").WithReason("PRICE_EXCEEDS_CEILING")
	remote := &fakeRemote{createErrs: []error{transportErr(), invalid}, submitErrs: []error{transportErr()}}
	ws, store := newTestWorkspace(t, remote)
	ctx := context.Background()
	offlineQuoteOnOfflineRequirement(t, ws)

	report, err := ws.Reconcile(ctx)
	require.NoError(t, err)
	require.Len(t, report.Rejected, 2)
	assert.Equal(t, KindQuote, report.Rejected[1].Kind)
	assert.ErrorIs(t, report.Rejected[1].Err, invalid)
	assert.Len(t, remote.quotedOn, 1)

	pending, err := ws.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
	records, err := store.Records(ctx, KindQuote)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestResolveRepointsPendingQuotes(t *testing.T) {
	remote := &fakeRemote{
		createErrs: []error{transportErr()},
		submitErrs: []error{transportErr(), transportErr(), transportErr()},
	}
	ws, _ := newTestWorkspace(t, remote)
	ctx := context.Background()
	offlineQuoteOnOfflineRequirement(t, ws)

	report, err := ws.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"srv-req-1"}, report.Synced)
	require.Len(t, report.Deferred, 1)

	pending, err := ws.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.NotNil(t, pending[0].RequirementID)
	assert.Equal(t, "srv-req-1", *pending[0].RequirementID, "a later pass sends the server id")
}

func TestCachedListsPendingFirst(t *testing.T) {
	remote := &fakeRemote{submitErrs: []error{transportErr()}}
	ws, _ := newTestWorkspace(t, remote)
	ctx := context.Background()

	_, err := ws.SubmitQuote(ctx, "r-1", quoteInput())
	require.NoError(t, err)
	online, err := ws.SubmitQuote(ctx, "r-2", quoteInput())
	require.NoError(t, err)
	require.False(t, online.SavedLocally)

	entries, err := ws.Cached(ctx, KindQuote)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Pending)
	assert.False(t, entries[1].Pending)
	assert.Equal(t, "srv-quote-1", entries[1].ID)
	assert.Contains(t, string(entries[1].Record), `"r-2"`)

	_, err = ws.Cached(ctx, "order")
	assert.Error(t, err)
}

func TestRequirementFallsBackToCache(t *testing.T) {
	remote := &fakeRemote{getResult: Requirement{ID: "r-7", Status: "viewed"}}
	ws, _ := newTestWorkspace(t, remote)
	ctx := context.Background()

	req, fromCache, err := ws.Requirement(ctx, "r-7")
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, "viewed", req.Status)

	remote.getErr = transportErr()
	req, fromCache, err = ws.Requirement(ctx, "r-7")
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Equal(t, "viewed", req.Status)

	_, _, err = ws.Requirement(ctx, "unknown")
	assert.True(t, IsTransport(err))
}
