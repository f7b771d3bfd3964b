package store

// Action is a public, synchronous orchestration over a store. It may call
// the store's actions and perform side effects but never holds a Writer.
type Action[St, O any] interface {
	Execute(st St) O
}

// ActionFunc adapts a function to Action.
type ActionFunc[St, O any] func(St) O

// Execute implements Action.
func (f ActionFunc[St, O]) Execute(st St) O {
	return f(st)
}

// Dispatch runs action against st.
func Dispatch[St, O any](st St, action Action[St, O]) O {
	return action.Execute(st)
}

// ActionState tracks the lifecycle of one action invocation.
type ActionState int

const (
	ActionIdle ActionState = iota
	ActionPending
	ActionSuccess
	ActionError
)

// String returns the lowercase state name.
func (s ActionState) String() string {
	switch s {
	case ActionIdle:
		return "idle"
	case ActionPending:
		return "pending"
	case ActionSuccess:
		return "success"
	case ActionError:
		return "error"
	default:
		return "unknown"
	}
}

func (s ActionState) IsIdle() bool    { return s == ActionIdle }
func (s ActionState) IsPending() bool { return s == ActionPending }
func (s ActionState) IsSuccess() bool { return s == ActionSuccess }
func (s ActionState) IsError() bool   { return s == ActionError }

// IsFinished reports whether the action completed either way.
func (s ActionState) IsFinished() bool {
	return s == ActionSuccess || s == ActionError
}
