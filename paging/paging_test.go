package paging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// pagedSource serves a fixed record set in configurable page sizes.
type pagedSource struct {
	records   []int
	pageSizes []int // actual sizes to serve per page, independent of limit
	fetches   int
}

func (s *pagedSource) search(ctx context.Context, offset, limit int) (Page[int], error) {
	s.fetches++
	pageIdx := 0
	start := 0
	for start < offset && pageIdx < len(s.pageSizes) {
		start += s.pageSizes[pageIdx]
		pageIdx++
	}
	size := s.pageSizes[pageIdx]
	end := start + size
	next := end
	if end >= len(s.records) {
		end = len(s.records)
		next = EndOfResults
	}
	return Page[int]{Items: s.records[start:end], NextOffset: next}, nil
}

func identity(ctx context.Context, item int) (int, error) {
	return item, nil
}

func TestCollectWalksAllPagesAndPartitions(t *testing.T) {
	records := make([]int, 69)
	for i := range records {
		records[i] = i
	}
	source := &pagedSource{records: records, pageSizes: []int{32, 32, 5}}

	buckets, err := Collect(context.Background(), source.search, identity, func(n int) string {
		if n%2 == 0 {
			return "even"
		}
		return "odd"
	}, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := len(buckets["even"]) + len(buckets["odd"]); got != 69 {
		t.Errorf("expected 69 records, got %d", got)
	}
	if len(buckets["even"]) != 35 {
		t.Errorf("expected 35 even records, got %d", len(buckets["even"]))
	}
	if source.fetches != 3 {
		t.Errorf("expected 3 page fetches, got %d", source.fetches)
	}
}

func TestCollectStopsOnEndOfResultsSentinel(t *testing.T) {
	calls := 0
	search := func(ctx context.Context, offset, limit int) (Page[int], error) {
		calls++
		return Page[int]{Items: []int{offset}, NextOffset: EndOfResults}, nil
	}

	all, err := CollectAll(context.Background(), search, identity, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a single fetch, got %d", calls)
	}
	if len(all) != 1 {
		t.Errorf("expected 1 record, got %d", len(all))
	}
}

var errPageLimit = errors.New("page limit exceeded")

func TestCollectHalvesPageSizeOnRejection(t *testing.T) {
	var limits []int
	search := func(ctx context.Context, offset, limit int) (Page[int], error) {
		limits = append(limits, limit)
		if limit > 8 {
			return Page[int]{}, errPageLimit
		}
		return Page[int]{Items: []int{1, 2, 3}, NextOffset: EndOfResults}, nil
	}

	all, err := CollectAll(context.Background(), search, identity, Options{
		Retryable: func(err error) bool { return errors.Is(err, errPageLimit) },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 records, got %d", len(all))
	}
	want := []int{32, 16, 8}
	if fmt.Sprint(limits) != fmt.Sprint(want) {
		t.Errorf("expected limits %v, got %v", want, limits)
	}
}

func TestCollectPropagatesAtFloor(t *testing.T) {
	var limits []int
	search := func(ctx context.Context, offset, limit int) (Page[int], error) {
		limits = append(limits, limit)
		return Page[int]{}, errPageLimit
	}

	_, err := CollectAll(context.Background(), search, identity, Options{
		Retryable: func(err error) bool { return errors.Is(err, errPageLimit) },
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, errPageLimit) {
		t.Errorf("expected wrapped page limit error, got %v", err)
	}
	if !strings.Contains(err.Error(), "floor") {
		t.Errorf("expected floor in error, got %v", err)
	}
	// Halving 4 would land on the floor (2), so the fetch at 4 is the last try.
	want := []int{32, 16, 8, 4}
	if fmt.Sprint(limits) != fmt.Sprint(want) {
		t.Errorf("expected attempted limits %v, got %v", want, limits)
	}
}

func TestCollectNonRetryableErrorIsFatal(t *testing.T) {
	calls := 0
	search := func(ctx context.Context, offset, limit int) (Page[int], error) {
		calls++
		return Page[int]{}, errors.New("permission denied")
	}

	_, err := CollectAll(context.Background(), search, identity, Options{
		Retryable: func(err error) bool { return errors.Is(err, errPageLimit) },
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if calls != 1 {
		t.Errorf("expected no retries, got %d calls", calls)
	}
}

func TestCollectDetailErrorIsFatal(t *testing.T) {
	search := func(ctx context.Context, offset, limit int) (Page[int], error) {
		return Page[int]{Items: []int{1}, NextOffset: EndOfResults}, nil
	}
	detail := func(ctx context.Context, item int) (int, error) {
		return 0, errors.New("record vanished")
	}

	_, err := CollectAll(context.Background(), search, detail, Options{})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}
