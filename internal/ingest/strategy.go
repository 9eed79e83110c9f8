package ingest

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/openintegrate/ingest-core/internal/apispec"
)

// =============================================================================
// PAGINATION STRATEGIES
// =============================================================================

// Strategy fetches every record an endpoint will yield, following the
// pagination style it implements.
type Strategy interface {
	// Name identifies the strategy in logs and summaries.
	Name() string

	// FetchAll drains the endpoint into a normalized record sequence.
	FetchAll(ctx context.Context, f *Fetcher, endpoint string) ([]Record, error)
}

// SelectStrategy picks the strategy for an analysis: cursor maps to the
// cursor body, page to the page body, and unknown to the single-call body.
func SelectStrategy(a apispec.Analysis) Strategy {
	switch a.PaginationType {
	case apispec.PaginationCursor:
		return CursorStrategy{}
	case apispec.PaginationPage:
		return PageStrategy{}
	default:
		return SimpleStrategy{}
	}
}

// CursorStrategy pages with an opaque continuation token: it continues while
// the last page was non-empty and the source declared has_more, carrying the
// id of the last normalized record as the next starting_after value.
type CursorStrategy struct{}

func (CursorStrategy) Name() string { return "cursor" }

func (CursorStrategy) FetchAll(ctx context.Context, f *Fetcher, endpoint string) ([]Record, error) {
	var all []Record
	startingAfter := ""

	for {
		query := url.Values{}
		if startingAfter != "" {
			query.Set("starting_after", startingAfter)
		}

		payload, err := f.FetchPage(ctx, endpoint, query)
		if err != nil {
			return nil, err
		}

		page := Normalize(payload)
		all = append(all, page...)

		if len(page) == 0 || !declaresMore(payload) {
			return all, nil
		}

		last, ok := page[len(page)-1]["id"]
		if !ok {
			// Without a record id there is no next cursor.
			return all, nil
		}
		startingAfter = fmt.Sprint(last)
	}
}

// declaresMore reports whether the envelope carries a truthy has_more flag.
func declaresMore(payload any) bool {
	envelope, ok := payload.(map[string]any)
	if !ok {
		return false
	}
	more, _ := envelope["has_more"].(bool)
	return more
}

// PageStrategy pages with an incrementing page counter, continuing while the
// last page was non-empty.
type PageStrategy struct{}

func (PageStrategy) Name() string { return "page" }

func (PageStrategy) FetchAll(ctx context.Context, f *Fetcher, endpoint string) ([]Record, error) {
	var all []Record

	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("page", strconv.Itoa(page))

		payload, err := f.FetchPage(ctx, endpoint, query)
		if err != nil {
			return nil, err
		}

		records := Normalize(payload)
		if len(records) == 0 {
			return all, nil
		}
		all = append(all, records...)
	}
}

// SimpleStrategy performs exactly one call, no loop.
type SimpleStrategy struct{}

func (SimpleStrategy) Name() string { return "simple" }

func (SimpleStrategy) FetchAll(ctx context.Context, f *Fetcher, endpoint string) ([]Record, error) {
	payload, err := f.FetchPage(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return Normalize(payload), nil
}
