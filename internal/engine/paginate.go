package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/miradorstack/mirador-digest/internal/models"
)

// PagedSource executes one page of a time-filtered, cursor-paginated query.
// An empty cursor requests the first page.
type PagedSource[T any] interface {
	QueryPage(ctx context.Context, lowerBound time.Time, cursor models.Cursor) (models.Page[T], error)
}

// PageFunc adapts a function to the PagedSource interface.
type PageFunc[T any] func(ctx context.Context, lowerBound time.Time, cursor models.Cursor) (models.Page[T], error)

// QueryPage implements PagedSource.
func (f PageFunc[T]) QueryPage(ctx context.Context, lowerBound time.Time, cursor models.Cursor) (models.Page[T], error) {
	return f(ctx, lowerBound, cursor)
}

// FetchSince drains source for every record at or after lowerBound. It stops on
// an empty page or when a page carries no continuation cursor. Any page failure
// discards what was accumulated so callers never summarise a truncated list.
func FetchSince[T any](ctx context.Context, source PagedSource[T], lowerBound time.Time) ([]T, error) {
	var (
		records []T
		cursor  models.Cursor
	)
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := source.QueryPage(ctx, lowerBound, cursor)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		if len(result.Records) == 0 {
			break
		}
		records = append(records, result.Records...)
		if result.Next.Empty() {
			break
		}
		cursor = result.Next
	}
	return records, nil
}
