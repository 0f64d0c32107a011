package generator

import (
	"github.com/mister-10k/laps-routes-generator/internal/route"
)

// Observer receives the scheduler's incremental events. Calls are delivered
// in acceptance order from the scheduler's single control goroutine, before
// the next candidate is evaluated. Implementations that do slow work (UI
// updates, extra persistence) should hand off internally rather than block.
type Observer interface {
	// Progress carries free-form status text.
	Progress(message string)

	// RouteGenerated fires once per accepted route.
	RouteGenerated(rt *route.Route)

	// PersistRequested fires after each acceptance with the full retained
	// set at that point, never a diff, so an interrupted write loses at
	// most the latest save.
	PersistRequested(routes []*route.Route)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) Progress(string)                 {}
func (NopObserver) RouteGenerated(*route.Route)     {}
func (NopObserver) PersistRequested([]*route.Route) {}
