package templates

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/a-h/templ"
	"github.com/louisbranch/statehouse/internal/services/shared/stores/tokens"
	"github.com/louisbranch/statehouse/internal/services/web/routepath"
	"github.com/louisbranch/statehouse/internal/services/web/tokenquery"
)

// TokensCardID is the element id htmx swaps after token explorer actions.
const TokensCardID = "tokens"

var tokenColumns = []struct {
	field tokens.SortField
	key   string
}{
	{tokens.SortPrice, "tokens.col.price"},
	{tokens.SortPriceChange24h, "tokens.col.change"},
	{tokens.SortMarketCap, "tokens.col.mcap"},
	{tokens.SortLiquidity, "tokens.col.liquidity"},
	{tokens.SortHolders, "tokens.col.holders"},
}

// TokenTable renders the search form, sortable headers and filtered rows.
// Forms carry the current filters as hidden fields so posts without
// JavaScript keep them.
func TokenTable(page PageContext, s *tokens.Store) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := newWriter(ctx, out)
		q := tokenquery.FromStore(s)
		target := "#" + TokensCardID

		w.raw(`<section class="card"`)
		w.attr("id", TokensCardID)
		w.attr("data-count", strconv.Itoa(s.Count()))
		w.raw("><h1>")
		w.text(page.T("tokens.title"))
		w.raw(`</h1><p class="meta">`)
		w.text(page.T("tokens.count", s.Count()))
		w.raw(" · ")
		if at, ok := s.LastFetched(); ok {
			w.text(page.T("tokens.updated", at.UTC().Format(time.RFC3339)))
		} else {
			w.text(page.T("tokens.never_updated"))
		}
		w.raw("</p>")

		w.raw(`<form method="post"`)
		w.attr("action", routepath.TokensSearch)
		w.attr("hx-post", routepath.TokensSearch)
		w.attr("hx-target", target)
		w.raw(` hx-swap="outerHTML" role="search">`)
		w.hiddenQuery(q, tokenquery.SearchParam)
		w.raw(`<input type="search"`)
		w.attr("name", tokenquery.SearchParam)
		w.attr("value", q.Search)
		w.attr("placeholder", page.T("tokens.search"))
		w.raw(`><button type="submit">`)
		w.text(page.T("tokens.search_submit"))
		w.raw("</button></form>")

		rows := s.Filtered()
		if len(rows) == 0 {
			w.raw(`<p class="empty">`)
			w.text(page.T("tokens.empty"))
			w.raw("</p></section>")
			return w.err
		}

		w.raw("<table><thead><tr><th>")
		w.text(page.T("tokens.col.name"))
		w.raw("</th>")
		for _, col := range tokenColumns {
			w.raw("<th")
			if tokenquery.FieldParam(col.field) == tokenquery.FieldParam(q.Sort) {
				if q.Desc {
					w.raw(` aria-sort="descending"`)
				} else {
					w.raw(` aria-sort="ascending"`)
				}
			}
			w.raw(">")
			label := page.T(col.key)
			if tokenquery.FieldParam(col.field) == tokenquery.FieldParam(q.Sort) {
				if q.Desc {
					label += " ↓"
				} else {
					label += " ↑"
				}
			}
			w.postButton(routepath.TokensSort, target, label, "link",
				[2]string{tokenquery.SearchParam, q.Search},
				[2]string{tokenquery.SortParam, tokenquery.FieldParam(q.Sort)},
				[2]string{tokenquery.DirectionParam, directionValue(q.Desc)},
				[2]string{"field", tokenquery.FieldParam(col.field)},
			)
			w.raw("</th>")
		}
		w.raw("</tr></thead><tbody>")

		selected, hasSelected := s.Selected()
		for _, tok := range rows {
			w.raw("<tr")
			w.attr("data-token-id", tok.ID)
			if hasSelected && selected.ID == tok.ID {
				w.raw(` class="selected"`)
			}
			w.raw(`><td><strong>`)
			w.text(tok.Name)
			w.raw("</strong> <span class=\"symbol\">")
			w.text(tok.Symbol)
			w.raw("</span>")
			if tok.IsVerified() {
				w.raw(` <span class="badge">`)
				w.text(page.T("tokens.verified"))
				w.raw("</span>")
			}
			w.raw(`<br><code>`)
			w.text(tok.ShortAddress())
			w.raw("</code></td><td>")
			w.text(tok.FormattedPrice())
			change := tok.PriceChange24h()
			w.raw("</td><td")
			switch {
			case change > 0:
				w.raw(` class="up"`)
			case change < 0:
				w.raw(` class="down"`)
			}
			w.raw(">")
			w.text(fmt.Sprintf("%+.2f%%", change))
			w.raw("</td><td>")
			w.text(tok.FormattedMcap())
			w.raw("</td><td>")
			w.text(tok.FormattedLiquidity())
			w.raw("</td><td>")
			w.text(strconv.FormatUint(tok.HolderCount, 10))
			w.raw("</td></tr>")
		}
		w.raw("</tbody></table></section>")
		return w.err
	})
}

func directionValue(desc bool) string {
	if desc {
		return "desc"
	}
	return "asc"
}

// hiddenQuery writes the filter fields of q except skip.
func (w *writer) hiddenQuery(q tokenquery.Query, skip string) {
	for _, field := range [][2]string{
		{tokenquery.SearchParam, q.Search},
		{tokenquery.SortParam, tokenquery.FieldParam(q.Sort)},
		{tokenquery.DirectionParam, directionValue(q.Desc)},
	} {
		if field[0] == skip {
			continue
		}
		w.raw(`<input type="hidden"`)
		w.attr("name", field[0])
		w.attr("value", field[1])
		w.raw(">")
	}
}
