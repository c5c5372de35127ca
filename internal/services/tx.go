package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/prolean/ProleanBack/internal/repository"
)

// txRunner runs fn against a store bound to a single transaction.
type txRunner[S any] func(ctx context.Context, fn func(S) error) error

func pgxRunner[S any](t *repository.Transactor) txRunner[S] {
	return func(ctx context.Context, fn func(S) error) error {
		return t.WithTx(ctx, func(q *repository.Queries) error {
			store, ok := any(q).(S)
			if !ok {
				return fmt.Errorf("queries do not implement %T", (*S)(nil))
			}
			return fn(store)
		})
	}
}

// uniqueIDs drops non-positive ids and duplicates, returning them sorted.
func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var (
	_ identityStore     = (*repository.Queries)(nil)
	_ enrollmentStore   = (*repository.Queries)(nil)
	_ cohortStore       = (*repository.Queries)(nil)
	_ progressStore     = (*repository.Queries)(nil)
	_ questionStore     = (*repository.Queries)(nil)
	_ notificationStore = (*repository.Queries)(nil)
	_ catalogStore      = (*repository.Queries)(nil)
)
