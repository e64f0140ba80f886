package negotiation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"pgregory.net/rapid"

	"github.com/angelmondragon/sourcing-backend/internal/orders"
	"github.com/angelmondragon/sourcing-backend/internal/pricing"
	"github.com/angelmondragon/sourcing-backend/internal/quantity"
	"github.com/angelmondragon/sourcing-backend/internal/quotes"
	"github.com/angelmondragon/sourcing-backend/internal/requirements"
	dbpkg "github.com/angelmondragon/sourcing-backend/pkg/db"
	"github.com/angelmondragon/sourcing-backend/pkg/db/dbtest"
	"github.com/angelmondragon/sourcing-backend/pkg/db/models"
	"github.com/angelmondragon/sourcing-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/sourcing-backend/pkg/errors"
	"github.com/angelmondragon/sourcing-backend/pkg/metrics"
	"github.com/angelmondragon/sourcing-backend/pkg/outbox"
	"github.com/angelmondragon/sourcing-backend/pkg/pagination"
	"github.com/angelmondragon/sourcing-backend/pkg/types"
)

var fixedNow = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

type fixture struct {
	conn         *gorm.DB
	coordinator  Service
	requirements requirements.Service
	reqRepo      requirements.Repository
	quoteRepo    quotes.Repository
	orderRepo    orders.Repository
	buyer        types.Actor
	calendar     *requirements.Calendar
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	calendar := &requirements.Calendar{Location: time.UTC}
	now := fixedNow
	calendar.Now = func() time.Time { return now }

	reqRepo := requirements.NewRepository(conn)
	quoteRepo := quotes.NewRepository(conn)
	orderRepo := orders.NewRepository(conn)
	tx := dbpkg.NewFromConn(conn)
	publisher := outbox.NewService(outbox.NewRepository(conn), nil)

	reqSvc, err := requirements.NewService(reqRepo, tx, publisher, *calendar)
	require.NoError(t, err)
	coordinator, err := NewService(Deps{
		Requirements: reqRepo,
		Quotes:       quoteRepo,
		Orders:       orderRepo,
		Tx:           tx,
		Outbox:       publisher,
		Calendar:     *calendar,
		Metrics:      metrics.NewNegotiationMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	return &fixture{
		conn:         conn,
		coordinator:  coordinator,
		requirements: reqSvc,
		reqRepo:      reqRepo,
		quoteRepo:    quoteRepo,
		orderRepo:    orderRepo,
		buyer:        types.Actor{UserID: uuid.New(), Role: enums.ActorRoleBuyer},
		calendar:     calendar,
	}
}

func merchant() types.Actor {
	return types.Actor{UserID: uuid.New(), Role: enums.ActorRoleMerchant}
}

// scenarioRequirement is W240/india (ceiling 8300), 500..1000 at 8000 with no lower bids.
func (f *fixture) scenarioRequirement(t *testing.T) *requirements.Summary {
	t.Helper()
	summary, err := f.requirements.Create(context.Background(), f.buyer, requirements.CreateInput{
		Grade:            enums.GradeW240,
		Origin:           enums.OriginIndia,
		RequiredQuantity: "1000",
		MinimumQuantity:  "500",
		ExpectedPrice:    decimal.NewFromInt(8000),
		AllowLowerBid:    false,
		DeliveryDeadline: time.Date(2026, 12, 15, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return summary
}

func (f *fixture) status(t *testing.T, id uuid.UUID) enums.RequirementStatus {
	t.Helper()
	req, err := f.reqRepo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return req.Status
}

func (f *fixture) submit(t *testing.T, actor types.Actor, reqID uuid.UUID, qty string, price int64) (*quotes.View, error) {
	t.Helper()
	return f.coordinator.SubmitQuote(context.Background(), actor, quotes.SubmitInput{
		RequirementID: reqID,
		Quantity:      qty,
		Price:         decimal.NewFromInt(price),
	})
}

func (f *fixture) events(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&count).Error)
	return count
}

func TestScenarioA_CreateWithinCeiling(t *testing.T) {
	f := newFixture(t)
	req := f.scenarioRequirement(t)
	assert.Equal(t, enums.RequirementStatusActive, req.Status)
	require.NotNil(t, req.CeilingPrice)
	assert.True(t, req.CeilingPrice.Equal(decimal.NewFromInt(8300)))
}

func TestScenarioB_PriceBelowFloor(t *testing.T) {
	f := newFixture(t)
	req := f.scenarioRequirement(t)

	_, err := f.submit(t, merchant(), req.ID, "600", 7900)
	require.Error(t, err)
	assert.Equal(t, pricing.ReasonPriceBelowFloor, pkgerrors.ReasonOf(err))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, enums.RequirementStatusActive, f.status(t, req.ID), "no partial mutation")
}

func TestScenarioC_QuantityOutOfRange(t *testing.T) {
	f := newFixture(t)
	req := f.scenarioRequirement(t)

	_, err := f.submit(t, merchant(), req.ID, "1500", 8100)
	require.Error(t, err)
	assert.Equal(t, ReasonQuantityOutOfRange, pkgerrors.ReasonOf(err))
	assert.True(t, pkgerrors.HasReason(err, quantity.ReasonAboveMaximum))

	_, err = f.submit(t, merchant(), req.ID, "499", 8100)
	assert.Equal(t, ReasonQuantityOutOfRange, pkgerrors.ReasonOf(err))
	assert.True(t, pkgerrors.HasReason(err, quantity.ReasonBelowMinimum))

	_, err = f.submit(t, merchant(), req.ID, "seven hundred", 8100)
	assert.Equal(t, quantity.ReasonNotANumber, pkgerrors.ReasonOf(err))
}

func TestScenarioD_SubmitResponds(t *testing.T) {
	f := newFixture(t)
	req := f.scenarioRequirement(t)

	quote, err := f.submit(t, merchant(), req.ID, "700", 8200)
	require.NoError(t, err)
	assert.Equal(t, enums.QuoteStatusNew, quote.Status)
	assert.True(t, quote.Quantity.Equal(decimal.NewFromInt(700)))
	assert.Equal(t, enums.RequirementStatusResponded, f.status(t, req.ID))
	assert.Equal(t, int64(1), f.events(t, enums.EventQuoteSubmitted))
}

func TestScenarioE_AcceptSelectsAndCreatesOrder(t *testing.T) {
	f := newFixture(t)
	req := f.scenarioRequirement(t)
	quote, err := f.submit(t, merchant(), req.ID, "700", 8200)
	require.NoError(t, err)

	result, err := f.coordinator.AcceptQuote(context.Background(), f.buyer, quote.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.QuoteStatusAccepted, result.Quote.Status)
	assert.Equal(t, enums.RequirementStatusSelected, result.Requirement.Status)
	assert.True(t, result.Order.Quantity.Equal(decimal.NewFromInt(700)))
	assert.True(t, result.Order.Price.Equal(decimal.NewFromInt(8200)))
	assert.Equal(t, enums.OrderStatusPending, result.Order.Status)

	assert.Equal(t, enums.RequirementStatusSelected, f.status(t, req.ID))
	stored, err := f.orderRepo.FindByRequirement(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, quote.ID, stored.QuoteID)

	_, err = f.submit(t, merchant(), req.ID, "800", 8200)
	require.Error(t, err)
	assert.Equal(t, requirements.ReasonRequirementNotOpen, pkgerrors.ReasonOf(err))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestScenarioF_SkipClosesFreshRequirement(t *testing.T) {
	f := newFixture(t)
	req := f.scenarioRequirement(t)

	summary, err := f.coordinator.SkipRequirement(context.Background(), merchant(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.RequirementStatusClosed, summary.Status)
	assert.Equal(t, enums.RequirementStatusClosed, f.status(t, req.ID))

	open, err := f.reqRepo.ListOpen(context.Background(), f.calendar.Today(), paginationAll())
	require.NoError(t, err)
	assert.Empty(t, open)

	_, err = f.coordinator.SkipRequirement(context.Background(), f.buyer, req.ID)
	assert.Equal(t, requirements.ReasonAlreadyTerminal, pkgerrors.ReasonOf(err))
}

func TestSecondAcceptanceFails(t *testing.T) {
	f := newFixture(t)
	req := f.scenarioRequirement(t)
	first, err := f.submit(t, merchant(), req.ID, "700", 8200)
	require.NoError(t, err)
	second, err := f.submit(t, merchant(), req.ID, "900", 8000)
	require.NoError(t, err)

	_, err = f.coordinator.AcceptQuote(context.Background(), f.buyer, first.ID)
	require.NoError(t, err)

	_, err = f.coordinator.AcceptQuote(context.Background(), f.buyer, second.ID)
	require.Error(t, err)
	assert.Equal(t, quotes.ReasonDuplicateAcceptance, pkgerrors.ReasonOf(err))

	winner, err := f.quoteRepo.FindAccepted(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, winner.ID, "first acceptance unchanged")

	_, err = f.coordinator.AcceptQuote(context.Background(), f.buyer, first.ID)
	assert.Equal(t, quotes.ReasonQuoteNotNew, pkgerrors.ReasonOf(err))
}

func TestConcurrentAcceptsHaveOneWinner(t *testing.T) {
	f := newFixture(t)
	req := f.scenarioRequirement(t)
	ids := make([]uuid.UUID, 0, 4)
	for i := 0; i < 4; i++ {
		q, err := f.submit(t, merchant(), req.ID, "600", 8100)
		require.NoError(t, err)
		ids = append(ids, q.ID)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			_, errs[i] = f.coordinator.AcceptQuote(context.Background(), f.buyer, id)
		}(i, id)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		assert.Equal(t, quotes.ReasonDuplicateAcceptance, pkgerrors.ReasonOf(err))
	}
	assert.Equal(t, 1, winners)
}

func TestSingleWinnerProperty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rapid.Check(t, func(rt *rapid.T) {
		req, err := f.requirements.Create(ctx, f.buyer, requirements.CreateInput{
			Grade:            enums.GradeW320,
			Origin:           enums.OriginAny,
			RequiredQuantity: "100",
			MinimumQuantity:  "10",
			ExpectedPrice:    decimal.NewFromInt(5000),
			AllowLowerBid:    true,
			DeliveryDeadline: time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC),
		})
		if err != nil {
			rt.Fatalf("create: %v", err)
		}
		count := rapid.IntRange(1, 5).Draw(rt, "quotes")
		ids := make([]uuid.UUID, 0, count)
		for i := 0; i < count; i++ {
			q, err := f.coordinator.SubmitQuote(ctx, merchant(), quotes.SubmitInput{
				RequirementID: req.ID,
				Quantity:      "50",
				Price:         decimal.NewFromInt(int64(rapid.IntRange(1, 9000).Draw(rt, "price"))),
			})
			if err != nil {
				rt.Fatalf("submit: %v", err)
			}
			ids = append(ids, q.ID)
		}

		attempts := rapid.SliceOfN(rapid.IntRange(0, count-1), 1, 8).Draw(rt, "attempts")
		winners := 0
		for _, idx := range attempts {
			_, err := f.coordinator.AcceptQuote(ctx, f.buyer, ids[idx])
			switch {
			case err == nil:
				winners++
			case pkgerrors.HasReason(err, quotes.ReasonDuplicateAcceptance), pkgerrors.HasReason(err, quotes.ReasonQuoteNotNew):
			default:
				rt.Fatalf("unexpected error: %v", err)
			}
		}
		if winners != 1 {
			rt.Fatalf("expected exactly one winner, got %d", winners)
		}
		rows, err := f.quoteRepo.ListByRequirement(ctx, req.ID)
		if err != nil {
			rt.Fatalf("list: %v", err)
		}
		accepted := 0
		for _, row := range rows {
			if row.Status == enums.QuoteStatusAccepted {
				accepted++
			}
		}
		if accepted != 1 {
			rt.Fatalf("expected one accepted row, got %d", accepted)
		}
	})
}

func TestRejectRecomputesStatus(t *testing.T) {
	f := newFixture(t)
	req := f.scenarioRequirement(t)
	quote, err := f.submit(t, merchant(), req.ID, "700", 8200)
	require.NoError(t, err)

	rejected, err := f.coordinator.RejectQuote(context.Background(), f.buyer, quote.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.QuoteStatusRejected, rejected.Status)
	assert.Equal(t, enums.RequirementStatusResponded, f.status(t, req.ID), "rejected-only stays responded")

	_, err = f.coordinator.RejectQuote(context.Background(), f.buyer, quote.ID)
	assert.Equal(t, quotes.ReasonQuoteNotNew, pkgerrors.ReasonOf(err))

	_, err = f.coordinator.AcceptQuote(context.Background(), f.buyer, quote.ID)
	assert.Equal(t, quotes.ReasonQuoteNotNew, pkgerrors.ReasonOf(err))

	// still open after a rejection
	_, err = f.submit(t, merchant(), req.ID, "650", 8000)
	require.NoError(t, err)
}

func TestRejectLeavesFinalRequirementStatus(t *testing.T) {
	t.Run("after skip", func(t *testing.T) {
		f := newFixture(t)
		req := f.scenarioRequirement(t)
		quote, err := f.submit(t, merchant(), req.ID, "700", 8200)
		require.NoError(t, err)
		_, err = f.coordinator.SkipRequirement(context.Background(), f.buyer, req.ID)
		require.NoError(t, err)

		rejected, err := f.coordinator.RejectQuote(context.Background(), f.buyer, quote.ID)
		require.NoError(t, err)
		assert.Equal(t, enums.QuoteStatusRejected, rejected.Status)
		assert.Equal(t, enums.RequirementStatusClosed, f.status(t, req.ID))
		assert.Equal(t, int64(1), f.events(t, enums.EventQuoteRejected))
	})

	t.Run("losing sibling after confirm", func(t *testing.T) {
		f := newFixture(t)
		req := f.scenarioRequirement(t)
		winnerMerchant := merchant()
		winner, err := f.submit(t, winnerMerchant, req.ID, "700", 8200)
		require.NoError(t, err)
		loser, err := f.submit(t, merchant(), req.ID, "800", 8100)
		require.NoError(t, err)
		_, err = f.coordinator.AcceptQuote(context.Background(), f.buyer, winner.ID)
		require.NoError(t, err)
		_, err = f.coordinator.ConfirmOrder(context.Background(), winnerMerchant, req.ID)
		require.NoError(t, err)

		rejected, err := f.coordinator.RejectQuote(context.Background(), f.buyer, loser.ID)
		require.NoError(t, err)
		assert.Equal(t, enums.QuoteStatusRejected, rejected.Status)
		assert.Equal(t, enums.RequirementStatusConfirmed, f.status(t, req.ID))

		kept, err := f.quoteRepo.FindAccepted(context.Background(), req.ID)
		require.NoError(t, err)
		assert.Equal(t, winner.ID, kept.ID)
	})
}

func TestDecisionsRequireOwningBuyer(t *testing.T) {
	f := newFixture(t)
	req := f.scenarioRequirement(t)
	quote, err := f.submit(t, merchant(), req.ID, "700", 8200)
	require.NoError(t, err)

	stranger := types.Actor{UserID: uuid.New(), Role: enums.ActorRoleBuyer}
	_, err = f.coordinator.AcceptQuote(context.Background(), stranger, quote.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = f.coordinator.RejectQuote(context.Background(), merchant(), quote.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	admin := types.Actor{UserID: uuid.New(), Role: enums.ActorRoleAdmin}
	_, err = f.coordinator.AcceptQuote(context.Background(), admin, quote.ID)
	require.NoError(t, err)
}

func TestSubmitPreconditions(t *testing.T) {
	f := newFixture(t)
	req := f.scenarioRequirement(t)

	_, err := f.submit(t, f.buyer, req.ID, "700", 8200)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden), "buyers do not quote")

	_, err = f.submit(t, merchant(), uuid.New(), "700", 8200)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.submit(t, merchant(), req.ID, "700", 8400)
	assert.Equal(t, pricing.ReasonPriceExceedsCeiling, pkgerrors.ReasonOf(err))

	_, err = f.submit(t, merchant(), req.ID, "700.0004", 8200)
	assert.Equal(t, quantity.ReasonTooPrecise, pkgerrors.ReasonOf(err))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.coordinator.SubmitQuote(context.Background(), merchant(), quotes.SubmitInput{
		RequirementID: req.ID,
		Quantity:      "700",
		Price:         decimal.RequireFromString("8200.005"),
	})
	assert.Equal(t, pricing.ReasonInvalidPrice, pkgerrors.ReasonOf(err))

	// the deadline passes without any stored transition
	f.calendar.Now = func() time.Time { return time.Date(2026, 12, 16, 0, 0, 0, 0, time.UTC) }
	expired := newCoordinatorWithCalendar(t, f)
	_, err = expired.SubmitQuote(context.Background(), merchant(), quotes.SubmitInput{RequirementID: req.ID, Quantity: "700", Price: decimal.NewFromInt(8200)})
	require.Error(t, err)
	assert.Equal(t, requirements.ReasonRequirementNotOpen, pkgerrors.ReasonOf(err))
	assert.Equal(t, enums.RequirementStatusActive, f.status(t, req.ID))
}

func TestSubmitAllowsMultipleQuotesPerMerchant(t *testing.T) {
	f := newFixture(t)
	req := f.scenarioRequirement(t)
	m := merchant()
	_, err := f.submit(t, m, req.ID, "700", 8200)
	require.NoError(t, err)
	_, err = f.submit(t, m, req.ID, "900", 8100)
	require.NoError(t, err)

	rows, err := f.quoteRepo.ListByRequirement(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestSubmitRejectsDraft(t *testing.T) {
	f := newFixture(t)
	draft, err := f.requirements.Create(context.Background(), f.buyer, requirements.CreateInput{
		Grade:            enums.GradeW240,
		Origin:           enums.OriginVietnam,
		RequiredQuantity: "1000",
		MinimumQuantity:  "100",
		ExpectedPrice:    decimal.NewFromInt(7000),
		DeliveryDeadline: time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC),
		IsDraft:          true,
	})
	require.NoError(t, err)

	_, err = f.submit(t, merchant(), draft.ID, "500", 7000)
	assert.Equal(t, requirements.ReasonRequirementNotOpen, pkgerrors.ReasonOf(err))
}

func TestMarkViewedIsIdempotent(t *testing.T) {
	f := newFixture(t)
	req := f.scenarioRequirement(t)
	m := merchant()

	changed, err := f.coordinator.MarkViewed(context.Background(), m, req.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, enums.RequirementStatusViewed, f.status(t, req.ID))

	changed, err = f.coordinator.MarkViewed(context.Background(), merchant(), req.ID)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, enums.RequirementStatusViewed, f.status(t, req.ID))

	stored, err := f.reqRepo.FindByID(context.Background(), req.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.FirstViewedBy)
	assert.Equal(t, m.UserID, *stored.FirstViewedBy)

	changed, err = f.coordinator.MarkViewed(context.Background(), f.buyer, req.ID)
	require.NoError(t, err)
	assert.False(t, changed, "buyers never mark viewed")
}

func TestConfirmOrder(t *testing.T) {
	f := newFixture(t)
	req := f.scenarioRequirement(t)
	m := merchant()
	quote, err := f.submit(t, m, req.ID, "700", 8200)
	require.NoError(t, err)

	_, err = f.coordinator.ConfirmOrder(context.Background(), m, req.ID)
	assert.Equal(t, requirements.ReasonInvalidTransition, pkgerrors.ReasonOf(err), "not selected yet")

	_, err = f.coordinator.AcceptQuote(context.Background(), f.buyer, quote.ID)
	require.NoError(t, err)

	_, err = f.coordinator.ConfirmOrder(context.Background(), merchant(), req.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden), "unrelated merchant")

	order, err := f.coordinator.ConfirmOrder(context.Background(), m, req.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusConfirmed, order.Status)
	require.NotNil(t, order.ConfirmedAt)
	assert.Equal(t, enums.RequirementStatusConfirmed, f.status(t, req.ID))
	assert.Equal(t, int64(1), f.events(t, enums.EventOrderConfirmed))

	_, err = f.coordinator.ConfirmOrder(context.Background(), f.buyer, req.ID)
	assert.Equal(t, requirements.ReasonAlreadyTerminal, pkgerrors.ReasonOf(err))

	_, err = f.coordinator.CancelOrder(context.Background(), f.buyer, req.ID, "changed mind")
	assert.Equal(t, requirements.ReasonAlreadyTerminal, pkgerrors.ReasonOf(err))

	_, err = f.coordinator.SkipRequirement(context.Background(), f.buyer, req.ID)
	assert.Equal(t, requirements.ReasonAlreadyTerminal, pkgerrors.ReasonOf(err))
}

func TestCancelOrderClosesRequirement(t *testing.T) {
	f := newFixture(t)
	req := f.scenarioRequirement(t)
	quote, err := f.submit(t, merchant(), req.ID, "700", 8200)
	require.NoError(t, err)
	_, err = f.coordinator.AcceptQuote(context.Background(), f.buyer, quote.ID)
	require.NoError(t, err)

	_, err = f.coordinator.SkipRequirement(context.Background(), f.buyer, req.ID)
	assert.Equal(t, requirements.ReasonRequirementNotOpen, pkgerrors.ReasonOf(err), "selected is unwound by cancelling the order")

	order, err := f.coordinator.CancelOrder(context.Background(), f.buyer, req.ID, "  supplier unavailable ")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, order.Status)
	require.NotNil(t, order.CancelReason)
	assert.Equal(t, "supplier unavailable", *order.CancelReason)
	assert.Equal(t, enums.RequirementStatusClosed, f.status(t, req.ID))

	winner, err := f.quoteRepo.FindAccepted(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, quote.ID, winner.ID, "accepted quote kept for audit")
	assert.Equal(t, int64(1), f.events(t, enums.EventOrderCancelled))
}

func TestSkipPermissions(t *testing.T) {
	f := newFixture(t)
	req := f.scenarioRequirement(t)

	stranger := types.Actor{UserID: uuid.New(), Role: enums.ActorRoleBuyer}
	_, err := f.coordinator.SkipRequirement(context.Background(), stranger, req.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	quote, err := f.submit(t, merchant(), req.ID, "700", 8200)
	require.NoError(t, err)

	_, err = f.coordinator.SkipRequirement(context.Background(), f.buyer, req.ID)
	require.NoError(t, err)

	stored, err := f.quoteRepo.FindByID(context.Background(), quote.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.QuoteStatusNew, stored.Status, "skip leaves quotes untouched")

	_, err = f.coordinator.AcceptQuote(context.Background(), f.buyer, quote.ID)
	assert.Equal(t, requirements.ReasonRequirementNotOpen, pkgerrors.ReasonOf(err), "a closed requirement takes no winner")
}

func newCoordinatorWithCalendar(t *testing.T, f *fixture) Service {
	t.Helper()
	svc, err := NewService(Deps{
		Requirements: f.reqRepo,
		Quotes:       f.quoteRepo,
		Orders:       f.orderRepo,
		Tx:           dbpkg.NewFromConn(f.conn),
		Outbox:       outbox.NewService(outbox.NewRepository(f.conn), nil),
		Calendar:     *f.calendar,
	})
	require.NoError(t, err)
	return svc
}

func paginationAll() pagination.Params {
	return pagination.Params{Limit: pagination.MaxLimit}
}
