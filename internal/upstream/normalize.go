package upstream

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// ResponseShape is the detected wire shape of an upstream list response.
type ResponseShape int

const (
	// ShapeUnknown means the payload matched none of the known shapes.
	ShapeUnknown ResponseShape = iota
	// ShapeArray is a bare JSON collection: [...]
	ShapeArray
	// ShapeDataWrapper is the legacy wrapper: {"data": [...]}
	ShapeDataWrapper
	// ShapePagedEnvelope is the paged envelope:
	// {"content": [...], "pageNumber": n, "pageSize": n, "total"|"totalElements": n}
	ShapePagedEnvelope
)

func (s ResponseShape) String() string {
	switch s {
	case ShapeArray:
		return "array"
	case ShapeDataWrapper:
		return "data-wrapper"
	case ShapePagedEnvelope:
		return "paged-envelope"
	default:
		return "unknown"
	}
}

// Page is the canonical form every upstream list response is collapsed into.
type Page struct {
	Items []json.RawMessage

	// Paging metadata, only meaningful for the paged envelope shape. For the
	// other shapes PageNumber is 0 and PageSize equals len(Items).
	PageNumber int
	PageSize   int

	// Total is the upstream-reported total item count. TotalKnown is false
	// when the envelope carried neither total nor totalElements, or the
	// response was not paged at all.
	Total      int64
	TotalKnown bool

	// HasMore reports whether further pages are available. With an unknown
	// total it is computed from whether the current page is full-sized.
	HasMore bool
}

// DetectShape classifies a raw payload. Detection order is fixed: bare
// collection first, then the data wrapper, then the paged envelope. First
// match wins.
func DetectShape(raw []byte) ResponseShape {
	parsed := gjson.ParseBytes(raw)
	if parsed.IsArray() {
		return ShapeArray
	}
	if !parsed.IsObject() {
		return ShapeUnknown
	}
	if parsed.Get("data").IsArray() {
		return ShapeDataWrapper
	}
	if parsed.Get("content").IsArray() {
		return ShapePagedEnvelope
	}
	return ShapeUnknown
}

// Normalize collapses an upstream list response into the canonical Page
// shape. It is the single choke point for shape handling: new upstream
// shapes get a case here and nowhere else.
func Normalize(raw []byte) (Page, error) {
	shape := DetectShape(raw)

	switch shape {
	case ShapeArray:
		items := rawItems(gjson.ParseBytes(raw))
		return Page{Items: items, PageSize: len(items)}, nil

	case ShapeDataWrapper:
		items := rawItems(gjson.GetBytes(raw, "data"))
		return Page{Items: items, PageSize: len(items)}, nil

	case ShapePagedEnvelope:
		parsed := gjson.ParseBytes(raw)
		items := rawItems(parsed.Get("content"))

		page := Page{
			Items:      items,
			PageNumber: int(parsed.Get("pageNumber").Int()),
			PageSize:   int(parsed.Get("pageSize").Int()),
		}
		if page.PageSize == 0 {
			page.PageSize = len(items)
		}

		// An explicit total wins over totalElements.
		if total := parsed.Get("total"); total.Exists() {
			page.Total = total.Int()
			page.TotalKnown = true
		} else if total := parsed.Get("totalElements"); total.Exists() {
			page.Total = total.Int()
			page.TotalKnown = true
		}

		if page.TotalKnown {
			page.HasMore = int64(page.PageNumber+1)*int64(page.PageSize) < page.Total
		} else {
			// Without a total, a full page is the only hint that more data
			// may follow.
			page.HasMore = page.PageSize > 0 && len(items) == page.PageSize
		}
		return page, nil

	default:
		return Page{}, fmt.Errorf("unrecognized list response shape (not an array, data wrapper, or paged envelope)")
	}
}

func rawItems(list gjson.Result) []json.RawMessage {
	arr := list.Array()
	items := make([]json.RawMessage, 0, len(arr))
	for _, item := range arr {
		items = append(items, json.RawMessage(item.Raw))
	}
	return items
}
