// Package tokenquery maps token explorer filters to and from URL query
// parameters so a filtered view can be linked and reloaded.
package tokenquery

import (
	"net/url"
	"strings"

	"github.com/louisbranch/statehouse/internal/services/shared/stores/tokens"
)

// Query parameter names.
const (
	SearchParam    = "q"
	SortParam      = "sort"
	DirectionParam = "dir"
)

var fieldParams = map[tokens.SortField]string{
	tokens.SortMarketCap:      "mcap",
	tokens.SortPrice:          "price",
	tokens.SortPriceChange24h: "change",
	tokens.SortLiquidity:      "liq",
	tokens.SortHolders:        "holders",
	tokens.SortVolume24h:      "volume",
}

// Query is the filter state carried in the URL.
type Query struct {
	Search string
	Sort   tokens.SortField
	Desc   bool
}

// Default is the query of an unfiltered page: market cap, largest first.
func Default() Query {
	return Query{Sort: tokens.SortMarketCap, Desc: true}
}

// Parse reads a query from URL values. Unknown sort names fall back to
// market cap and any direction other than asc sorts descending.
func Parse(values url.Values) Query {
	q := Default()
	q.Search = strings.TrimSpace(values.Get(SearchParam))
	if raw := values.Get(SortParam); raw != "" {
		q.Sort = ParseField(raw)
	}
	if raw := values.Get(DirectionParam); raw != "" {
		q.Desc = parseDirection(raw)
	}
	return q
}

// ParseField maps a URL sort name to a field. Both the short URL names
// and the field names are accepted.
func ParseField(value string) tokens.SortField {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "mcap", "marketcap":
		return tokens.SortMarketCap
	case "price":
		return tokens.SortPrice
	case "change", "24h", "pricechange24h":
		return tokens.SortPriceChange24h
	case "liq", "liquidity":
		return tokens.SortLiquidity
	case "holders":
		return tokens.SortHolders
	case "volume", "volume24h":
		return tokens.SortVolume24h
	default:
		return tokens.SortMarketCap
	}
}

// FieldParam returns the URL name for field.
func FieldParam(field tokens.SortField) string {
	if param, ok := fieldParams[field]; ok {
		return param
	}
	return fieldParams[tokens.SortMarketCap]
}

func parseDirection(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "asc", "a":
		return false
	default:
		return true
	}
}

func directionParam(desc bool) string {
	if desc {
		return "desc"
	}
	return "asc"
}

// IsDefault reports whether the sort is the unfiltered default.
func (q Query) IsDefault() bool {
	return FieldParam(q.Sort) == FieldParam(tokens.SortMarketCap) && q.Desc
}

// Values encodes the query. Sort parameters are omitted for the default
// sort.
func (q Query) Values() url.Values {
	values := url.Values{}
	if search := strings.TrimSpace(q.Search); search != "" {
		values.Set(SearchParam, search)
	}
	if !q.IsDefault() {
		values.Set(SortParam, FieldParam(q.Sort))
		values.Set(DirectionParam, directionParam(q.Desc))
	}
	return values
}

// Encode returns the encoded query string without a leading "?".
func (q Query) Encode() string {
	return q.Values().Encode()
}

// URL returns path with the query appended when non-empty.
func (q Query) URL(path string) string {
	if encoded := q.Encode(); encoded != "" {
		return path + "?" + encoded
	}
	return path
}

// Toggle returns the query after clicking the header of field: the same
// field flips direction and a new field starts descending.
func (q Query) Toggle(field tokens.SortField) Query {
	if FieldParam(q.Sort) == FieldParam(field) {
		q.Desc = !q.Desc
		return q
	}
	q.Sort = field
	q.Desc = true
	return q
}

// FromStore reads the filter state of s.
func FromStore(s *tokens.Store) Query {
	field, desc := s.Sort()
	if !field.Valid() {
		field = tokens.SortMarketCap
	}
	return Query{Search: s.SearchQuery(), Sort: field, Desc: desc}
}

// Apply writes the query into s through its actions.
func (q Query) Apply(s *tokens.Store) error {
	s.Search(q.Search)
	field := q.Sort
	if !field.Valid() {
		field = tokens.SortMarketCap
	}
	return s.SetSort(field, q.Desc)
}
