package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
	"quoteshare/pkg/domain"
	"quoteshare/pkg/store"
)

// keeps (page-1)*pageSize far from overflow
const maxPage = 1 << 30

// ListQuotes returns one page of the filtered feed, newest first.
// Pages below 1 are treated as 1; pages past the end are empty but still
// report the full total.
func (a *App) ListQuotes(ctx context.Context, filter domain.QuoteFilter, page int) (domain.QuotePage, error) {
	filter.Keyword = strings.TrimSpace(filter.Keyword)
	filter.Author = strings.TrimSpace(filter.Author)
	filter.Source = strings.TrimSpace(filter.Source)
	page = clampPage(page)
	offset := (page - 1) * a.pageSize

	var (
		items []domain.Quote
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := a.store.CountQuotes(gctx, filter)
		if err != nil {
			return fmt.Errorf("count quotes: %w", err)
		}
		total = n
		return nil
	})
	g.Go(func() error {
		res, err := a.store.ListQuotes(gctx, filter, offset, a.pageSize)
		if err != nil {
			return fmt.Errorf("list quotes: %w", err)
		}
		items = res
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.QuotePage{}, err
	}
	return domain.QuotePage{Items: items, Total: total, Page: page, PageSize: a.pageSize}, nil
}

// MyQuotes is ListQuotes scoped to quotes the user owns.
func (a *App) MyQuotes(ctx context.Context, user domain.User, page int) (domain.QuotePage, error) {
	return a.ListQuotes(ctx, domain.QuoteFilter{OwnerID: user.ID}, page)
}

// GetQuote returns a quote by id or ErrNotFound.
func (a *App) GetQuote(ctx context.Context, id uint64) (domain.Quote, error) {
	q, ok, err := a.store.GetQuote(ctx, id)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("get quote: %w", err)
	}
	if !ok {
		return domain.Quote{}, ErrNotFound
	}
	return q, nil
}

// EditableQuote returns a quote only when user owns it.
func (a *App) EditableQuote(ctx context.Context, user domain.User, id uint64) (domain.Quote, error) {
	q, err := a.GetQuote(ctx, id)
	if err != nil {
		return domain.Quote{}, err
	}
	if q.OwnerID != user.ID {
		return domain.Quote{}, ErrForbidden.WithMessage("You cannot edit this quote")
	}
	return q, nil
}

// CreateQuote stores a new quote owned by user.
func (a *App) CreateQuote(ctx context.Context, user domain.User, in QuoteInput) (domain.Quote, error) {
	in = in.normalized()
	if err := checkInput(in, "Content is required."); err != nil {
		return domain.Quote{}, err
	}
	now := a.now().UTC()
	q, err := a.store.CreateQuote(ctx, domain.Quote{
		OwnerID:     user.ID,
		OwnerName:   user.Username,
		Content:     in.Content,
		Source:      optional(in.Source),
		Author:      optional(in.Author),
		Explanation: optional(in.Explanation),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return domain.Quote{}, fmt.Errorf("create quote: %w", err)
	}
	return q, nil
}

// UpdateQuote overwrites all four fields. Checks run in the order
// existence, ownership, input.
func (a *App) UpdateQuote(ctx context.Context, user domain.User, id uint64, in QuoteInput) (domain.Quote, error) {
	q, err := a.EditableQuote(ctx, user, id)
	if err != nil {
		return domain.Quote{}, err
	}
	in = in.normalized()
	if err := checkInput(in, "Content is required."); err != nil {
		return domain.Quote{}, err
	}
	q.Content = in.Content
	q.Source = optional(in.Source)
	q.Author = optional(in.Author)
	q.Explanation = optional(in.Explanation)
	q.UpdatedAt = a.now().UTC()
	if err := a.store.UpdateQuote(ctx, q); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Quote{}, ErrNotFound
		}
		return domain.Quote{}, fmt.Errorf("update quote: %w", err)
	}
	return q, nil
}

// DeleteQuote removes a quote the user owns together with its reactions.
func (a *App) DeleteQuote(ctx context.Context, user domain.User, id uint64) error {
	q, err := a.GetQuote(ctx, id)
	if err != nil {
		return err
	}
	if q.OwnerID != user.ID {
		return ErrForbidden.WithMessage("You cannot delete this quote")
	}
	if err := a.store.DeleteQuote(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete quote: %w", err)
	}
	return nil
}

func clampPage(page int) int {
	if page < 1 {
		return 1
	}
	if page > maxPage {
		return maxPage
	}
	return page
}
