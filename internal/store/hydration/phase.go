package hydration

// Phase is the hydration progress of one store during one document load.
type Phase int

const (
	NotHydrated Phase = iota
	PayloadLocated
	Deserialized
	StoreConstructed
	Registered
	Hydrated
	HydrationFailed
)

var phaseNames = map[Phase]string{
	NotHydrated:      "not_hydrated",
	PayloadLocated:   "payload_located",
	Deserialized:     "deserialized",
	StoreConstructed: "store_constructed",
	Registered:       "registered",
	Hydrated:         "hydrated",
	HydrationFailed:  "hydration_failed",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no transition leaves p.
func (p Phase) Terminal() bool {
	return p == Hydrated || p == HydrationFailed
}

// CanTransition reports whether from -> to is an edge of the phase machine.
// The success path advances one phase at a time; the only failure edge
// leaves NotHydrated.
func CanTransition(from, to Phase) bool {
	switch {
	case from == NotHydrated && to == HydrationFailed:
		return true
	case from.Terminal() || to == HydrationFailed:
		return false
	default:
		return to == from+1
	}
}
