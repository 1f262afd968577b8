// Package paging aggregates complete result sets from a paged search
// capability, shrinking the page size when the service rejects it.
//
// The algorithm is shared by every composite "all X for user" action and has
// no knowledge of the domain: callers supply the search, the per-item detail
// fetch, the bucket classifier and the predicate that recognizes a
// retryable oversized-page rejection.
package paging

import (
	"context"
	"fmt"
)

// EndOfResults is the next-offset sentinel signaling the last page.
const EndOfResults = -1

// Page is one page of summaries plus the server-provided next offset.
type Page[S any] struct {
	Items      []S
	NextOffset int
}

// SearchFunc fetches one page at the given offset and page size.
type SearchFunc[S any] func(ctx context.Context, offset, limit int) (Page[S], error)

// DetailFunc resolves a summary item into its full record.
type DetailFunc[S, D any] func(ctx context.Context, item S) (D, error)

// Classifier assigns a detail record to a bucket.
type Classifier[D any] func(item D) string

// Options tunes the aggregation. The zero value uses the defaults.
type Options struct {
	// StartLimit is the initial page size (default 32).
	StartLimit int
	// FloorLimit is the smallest page size worth retrying at (default 2).
	// When halving would reach or cross the floor, the rejection is fatal.
	FloorLimit int
	// Retryable recognizes an oversized-page rejection. A nil predicate
	// makes every search error fatal.
	Retryable func(error) bool
}

func (o Options) withDefaults() Options {
	if o.StartLimit <= 0 {
		o.StartLimit = 32
	}
	if o.FloorLimit <= 0 {
		o.FloorLimit = 2
	}
	return o
}

// Collect walks every page from offset 0, resolves each summary to its
// detail record and buckets the records by the classifier's key. A nil
// classifier accumulates everything under the empty key.
//
// A retryable search failure halves the page size and retries the same
// offset; once halving would take the size to or below the floor, the error
// propagates. A next offset of EndOfResults completes the walk.
func Collect[S, D any](
	ctx context.Context,
	search SearchFunc[S],
	detail DetailFunc[S, D],
	classify Classifier[D],
	opts Options,
) (map[string][]D, error) {
	opts = opts.withDefaults()

	limit := opts.StartLimit
	offset := 0
	buckets := make(map[string][]D)

	for {
		page, err := search(ctx, offset, limit)
		if err != nil {
			if opts.Retryable != nil && opts.Retryable(err) {
				half := limit / 2
				if half <= opts.FloorLimit {
					return nil, fmt.Errorf("page size floor reached at limit %d: %w", limit, err)
				}
				limit = half
				continue
			}
			return nil, err
		}

		for _, item := range page.Items {
			record, err := detail(ctx, item)
			if err != nil {
				return nil, err
			}
			key := ""
			if classify != nil {
				key = classify(record)
			}
			buckets[key] = append(buckets[key], record)
		}

		if page.NextOffset == EndOfResults {
			return buckets, nil
		}
		offset = page.NextOffset
	}
}

// CollectAll is Collect without bucketing: the full record set in page order.
func CollectAll[S, D any](
	ctx context.Context,
	search SearchFunc[S],
	detail DetailFunc[S, D],
	opts Options,
) ([]D, error) {
	buckets, err := Collect(ctx, search, detail, nil, opts)
	if err != nil {
		return nil, err
	}
	return buckets[""], nil
}
