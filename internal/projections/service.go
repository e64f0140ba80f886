package projections

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/sourcing-backend/internal/orders"
	"github.com/angelmondragon/sourcing-backend/internal/quotes"
	"github.com/angelmondragon/sourcing-backend/internal/requirements"
	"github.com/angelmondragon/sourcing-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/sourcing-backend/pkg/errors"
	"github.com/angelmondragon/sourcing-backend/pkg/pagination"
	"github.com/angelmondragon/sourcing-backend/pkg/types"
)

// Service loads collections page by page and applies the projections.
type Service interface {
	OpenRequirements(ctx context.Context, actor types.Actor, params pagination.Params) (*types.ListEnvelope[OpenRequirement], error)
	MyQuotes(ctx context.Context, actor types.Actor, params pagination.Params) (*types.ListEnvelope[MyQuote], error)
	MyRequirements(ctx context.Context, actor types.Actor, params pagination.Params) (*types.ListEnvelope[requirements.Summary], error)
	Enquiries(ctx context.Context, actor types.Actor, params pagination.Params) (*types.ListEnvelope[Enquiry], error)
	ConfirmedTransactions(ctx context.Context, actor types.Actor, params pagination.Params) (*types.ListEnvelope[Transaction], error)
	// QuotesForRequirement applies viewer visibility to the quotes of one requirement.
	QuotesForRequirement(ctx context.Context, actor types.Actor, requirementID uuid.UUID) ([]quotes.View, error)
}

type service struct {
	requirements requirements.Repository
	quotes       quotes.Repository
	orders       orders.Repository
	calendar     requirements.Calendar
}

// NewService builds the projection service.
func NewService(reqRepo requirements.Repository, quoteRepo quotes.Repository, orderRepo orders.Repository, calendar requirements.Calendar) (Service, error) {
	if reqRepo == nil {
		return nil, fmt.Errorf("requirements repository required")
	}
	if quoteRepo == nil {
		return nil, fmt.Errorf("quotes repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	return &service{requirements: reqRepo, quotes: quoteRepo, orders: orderRepo, calendar: calendar}, nil
}

func (s *service) OpenRequirements(ctx context.Context, actor types.Actor, params pagination.Params) (*types.ListEnvelope[OpenRequirement], error) {
	if !actor.IsMerchant() && !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "merchant role required")
	}
	today := s.calendar.Today()
	rows, err := s.requirements.ListOpen(ctx, today, params)
	if err != nil {
		return nil, listError(err, "list open requirements")
	}
	page, next := pagination.Trim(rows, params.Limit, requirements.CursorOf)
	qs, err := s.quotes.ListByRequirementIDs(ctx, requirementIDs(page))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list quotes")
	}
	return &types.ListEnvelope[OpenRequirement]{
		Items:      OpenForMerchant(actor.UserID, page, qs, today),
		NextCursor: next,
	}, nil
}

func (s *service) MyQuotes(ctx context.Context, actor types.Actor, params pagination.Params) (*types.ListEnvelope[MyQuote], error) {
	if !actor.IsMerchant() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "merchant role required")
	}
	rows, err := s.quotes.ListByMerchant(ctx, actor.UserID, params)
	if err != nil {
		return nil, listError(err, "list merchant quotes")
	}
	page, next := pagination.Trim(rows, params.Limit, quotes.CursorOf)
	ids := make([]uuid.UUID, 0, len(page))
	for _, q := range page {
		ids = append(ids, q.RequirementID)
	}
	reqs, err := s.requirements.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load requirements")
	}
	return &types.ListEnvelope[MyQuote]{
		Items:      MyQuotes(actor.UserID, page, reqs, s.calendar.Today()),
		NextCursor: next,
	}, nil
}

func (s *service) MyRequirements(ctx context.Context, actor types.Actor, params pagination.Params) (*types.ListEnvelope[requirements.Summary], error) {
	page, next, qs, err := s.buyerPage(ctx, actor, params)
	if err != nil {
		return nil, err
	}
	return &types.ListEnvelope[requirements.Summary]{
		Items:      MyRequirements(actor.UserID, page, qs, s.calendar.Today()),
		NextCursor: next,
	}, nil
}

func (s *service) Enquiries(ctx context.Context, actor types.Actor, params pagination.Params) (*types.ListEnvelope[Enquiry], error) {
	page, next, qs, err := s.buyerPage(ctx, actor, params)
	if err != nil {
		return nil, err
	}
	return &types.ListEnvelope[Enquiry]{
		Items:      MerchantEnquiries(actor.UserID, page, qs, s.calendar.Today()),
		NextCursor: next,
	}, nil
}

func (s *service) ConfirmedTransactions(ctx context.Context, actor types.Actor, params pagination.Params) (*types.ListEnvelope[Transaction], error) {
	party := actor.UserID
	if actor.IsAdmin() {
		party = uuid.Nil
	} else if !actor.IsBuyer() && !actor.IsMerchant() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "role cannot list orders")
	}
	rows, err := s.orders.ListConfirmed(ctx, party, params)
	if err != nil {
		return nil, listError(err, "list confirmed orders")
	}
	page, next := pagination.Trim(rows, params.Limit, orders.CursorOf)
	ids := make([]uuid.UUID, 0, len(page))
	for _, o := range page {
		ids = append(ids, o.RequirementID)
	}
	reqs, err := s.requirements.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load requirements")
	}
	qs, err := s.quotes.ListByRequirementIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list quotes")
	}
	return &types.ListEnvelope[Transaction]{
		Items:      ConfirmedTransactions(inOrder(ids, reqs), qs, page, s.calendar.Today()),
		NextCursor: next,
	}, nil
}

func (s *service) QuotesForRequirement(ctx context.Context, actor types.Actor, requirementID uuid.UUID) ([]quotes.View, error) {
	req, err := s.requirements.FindByID(ctx, requirementID)
	if err != nil {
		return nil, listError(err, "load requirement")
	}
	if err := requirements.CanView(actor, *req); err != nil {
		return nil, err
	}
	qs, err := s.quotes.ListByRequirement(ctx, req.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list quotes")
	}
	return quotes.Visible(actor, *req, qs), nil
}

func (s *service) buyerPage(ctx context.Context, actor types.Actor, params pagination.Params) ([]models.Requirement, string, []models.Quote, error) {
	if !actor.IsBuyer() {
		return nil, "", nil, pkgerrors.New(pkgerrors.CodeForbidden, "buyer role required")
	}
	rows, err := s.requirements.ListByBuyer(ctx, actor.UserID, params)
	if err != nil {
		return nil, "", nil, listError(err, "list buyer requirements")
	}
	page, next := pagination.Trim(rows, params.Limit, requirements.CursorOf)
	qs, err := s.quotes.ListByRequirementIDs(ctx, requirementIDs(page))
	if err != nil {
		return nil, "", nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list quotes")
	}
	return page, next, qs, nil
}

func requirementIDs(reqs []models.Requirement) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(reqs))
	for _, req := range reqs {
		ids = append(ids, req.ID)
	}
	return ids
}

// inOrder returns reqs arranged like ids, dropping ids with no row.
func inOrder(ids []uuid.UUID, reqs []models.Requirement) []models.Requirement {
	byID := indexRequirements(reqs)
	out := make([]models.Requirement, 0, len(reqs))
	for _, id := range ids {
		if req, ok := byID[id]; ok {
			out = append(out, req)
		}
	}
	return out
}
