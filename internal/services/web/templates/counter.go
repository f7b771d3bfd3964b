package templates

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"
	"github.com/louisbranch/statehouse/internal/services/shared/stores/counter"
	"github.com/louisbranch/statehouse/internal/services/web/routepath"
)

// CounterCardID is the element id htmx swaps after counter actions.
const CounterCardID = "counter"

// CounterCard renders the counter and its actions from the store getters.
func CounterCard(page PageContext, s *counter.Store) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := newWriter(ctx, out)
		count := s.Count()
		w.raw(`<section class="card"`)
		w.attr("id", CounterCardID)
		w.attr("data-count", strconv.Itoa(count))
		w.raw("><h1>")
		w.text(page.T("counter.title"))
		w.raw(`</h1><p class="count">`)
		w.text(page.T("counter.value", count))
		w.raw(`</p><p class="doubled">`)
		w.text(page.T("counter.doubled", s.Doubled()))
		w.raw(`</p><p class="sign">`)
		switch {
		case s.IsPositive():
			w.text(page.T("counter.positive"))
		case s.IsNegative():
			w.text(page.T("counter.negative"))
		default:
			w.text(page.T("counter.zero"))
		}
		w.raw(`</p><div class="actions">`)
		target := "#" + CounterCardID
		w.postButton(routepath.CounterDecrement, target, page.T("counter.decrement"), "")
		w.postButton(routepath.CounterReset, target, page.T("counter.reset"), "secondary")
		w.postButton(routepath.CounterIncrement, target, page.T("counter.increment"), "")
		w.raw("</div></section>")
		return w.err
	})
}
