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

// ReactionSet is the reaction types one user holds on one quote.
type ReactionSet map[domain.ReactionType]bool

func (s ReactionSet) Liked() bool     { return s[domain.ReactionLike] }
func (s ReactionSet) Collected() bool { return s[domain.ReactionCollect] }

// ToggleReaction flips the user's reaction of the given type on a quote.
// The type is checked before the quote exists.
func (a *App) ToggleReaction(ctx context.Context, user domain.User, quoteID uint64, reactionType string) (domain.ReactionType, domain.ReactionState, error) {
	rt, ok := domain.ParseReactionType(strings.TrimSpace(reactionType))
	if !ok {
		return "", "", ErrInvalidReaction
	}
	state, err := a.store.ToggleReaction(ctx, user.ID, quoteID, rt)
	if errors.Is(err, store.ErrNotFound) {
		return "", "", ErrNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("toggle reaction: %w", err)
	}
	return rt, state, nil
}

// ReactionsFor maps each of quoteIDs the user reacted to onto its reaction set.
func (a *App) ReactionsFor(ctx context.Context, user domain.User, quoteIDs []uint64) (map[uint64]ReactionSet, error) {
	out := make(map[uint64]ReactionSet, len(quoteIDs))
	if len(quoteIDs) == 0 {
		return out, nil
	}
	reactions, err := a.store.ListUserReactions(ctx, user.ID, quoteIDs)
	if err != nil {
		return nil, fmt.Errorf("list reactions: %w", err)
	}
	for _, r := range reactions {
		set, ok := out[r.QuoteID]
		if !ok {
			set = ReactionSet{}
			out[r.QuoteID] = set
		}
		set[r.Type] = true
	}
	return out, nil
}

// ReactedQuotes pages through the quotes the user liked or collected,
// most recent reaction first.
func (a *App) ReactedQuotes(ctx context.Context, user domain.User, reaction domain.ReactionType, page int) (domain.QuotePage, error) {
	if _, ok := domain.ParseReactionType(string(reaction)); !ok {
		return domain.QuotePage{}, ErrInvalidReaction
	}
	page = clampPage(page)
	offset := (page - 1) * a.pageSize

	var (
		items []domain.Quote
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := a.store.CountReactedQuotes(gctx, user.ID, reaction)
		if err != nil {
			return fmt.Errorf("count reacted quotes: %w", err)
		}
		total = n
		return nil
	})
	g.Go(func() error {
		res, err := a.store.ListReactedQuotes(gctx, user.ID, reaction, offset, a.pageSize)
		if err != nil {
			return fmt.Errorf("list reacted quotes: %w", err)
		}
		items = res
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.QuotePage{}, err
	}
	return domain.QuotePage{Items: items, Total: total, Page: page, PageSize: a.pageSize}, nil
}
