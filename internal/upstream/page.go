package upstream

import (
	"context"
	"encoding/json"
	"strings"

	"testgate/pkg/logging"

	"github.com/tidwall/gjson"
)

// maxPageWalk bounds the reconciliation page walk. Hitting it yields a
// truncated result with Truncated set, never a silent cut.
const maxPageWalk = 1000

// PageWindow is the caller-requested window over a matched result set.
// The zero window with Unpaged set requests the full result.
type PageWindow struct {
	Offset  int
	Limit   int
	Unpaged bool
}

// PageFetcher fetches one upstream page by page number. Implementations apply
// every caller filter the upstream supports; the grouping-key filter is the
// reconciler's job.
type PageFetcher func(ctx context.Context, pageNumber int) (Page, error)

// ResultCounts are aggregates recomputed over exactly the windowed slice.
// Upstream page aggregates describe the unfiltered page and are never reused.
type ResultCounts struct {
	Items   int `json:"items"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// ReconciledResult is a window over items matched across upstream pages.
type ReconciledResult struct {
	Items []json.RawMessage

	// Matched is the number of items that matched the target key across all
	// walked pages, before windowing.
	Matched int

	Counts ResultCounts

	// Truncated reports that the page-walk safety bound was hit before the
	// matched set was provably complete.
	Truncated bool
}

// Reconcile collects every item for which match returns true across upstream
// pages, then applies the caller's window over the matched set.
//
// The walk starts at upstream page 0 and stops at the first of: a page
// shorter than size (end of data), the upstream-reported total reached, or
// the safety bound. size is the page size the fetcher requests from the
// upstream and must be positive; a non-positive size stops the walk after the
// first page. The end-of-data check compares against the requested size, not
// the page's self-reported one, because bare-collection responses normalize
// with their own length as the page size and would never look short. The
// caller's window always slices the accumulated matched items, never
// upstream pages, because the upstream paginates by an unrelated grouping
// and matching items may sit anywhere.
func Reconcile(ctx context.Context, fetch PageFetcher, match func(json.RawMessage) bool, size int, window PageWindow) (ReconciledResult, error) {
	var matched []json.RawMessage
	truncated := false
	seen := int64(0)

	for pageNumber := 0; ; pageNumber++ {
		if pageNumber >= maxPageWalk {
			truncated = true
			logging.Warn("Reconciler", "Page walk hit safety bound of %d pages, result is truncated", maxPageWalk)
			break
		}

		page, err := fetch(ctx, pageNumber)
		if err != nil {
			return ReconciledResult{}, err
		}

		for _, item := range page.Items {
			if match(item) {
				matched = append(matched, item)
			}
		}
		seen += int64(len(page.Items))

		// End-of-data heuristic: a page shorter than requested is the last one.
		if size <= 0 || len(page.Items) < size {
			break
		}
		// Explicit total reached.
		if page.TotalKnown && seen >= page.Total {
			break
		}
	}

	result := ReconciledResult{Matched: len(matched), Truncated: truncated}
	result.Items = applyWindow(matched, window)
	result.Counts = recomputeCounts(result.Items)
	return result, nil
}

// applyWindow slices the matched set by the caller's window. Out-of-range
// windows produce an empty slice, not an error.
func applyWindow(items []json.RawMessage, window PageWindow) []json.RawMessage {
	if window.Unpaged {
		return items
	}
	offset := window.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := len(items)
	if window.Limit > 0 && offset+window.Limit < end {
		end = offset + window.Limit
	}
	return items[offset:end]
}

// recomputeCounts sums aggregates over the windowed slice only.
func recomputeCounts(items []json.RawMessage) ResultCounts {
	counts := ResultCounts{Items: len(items)}
	for _, item := range items {
		switch strings.ToUpper(gjson.GetBytes(item, "status").String()) {
		case "PASSED":
			counts.Passed++
		case "FAILED":
			counts.Failed++
		case "SKIPPED":
			counts.Skipped++
		}
	}
	return counts
}

// MatchField returns a match function comparing a JSON field of each item
// against a target value.
func MatchField(field, want string) func(json.RawMessage) bool {
	return func(item json.RawMessage) bool {
		return gjson.GetBytes(item, field).String() == want
	}
}
