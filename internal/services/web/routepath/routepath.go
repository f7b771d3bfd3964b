// Package routepath stores canonical HTTP paths for the web service.
package routepath

const (
	Root             = "/"
	Health           = "/up"
	Auth             = "/auth"
	AuthLogin        = "/auth/login"
	AuthLogout       = "/auth/logout"
	Tokens           = "/tokens"
	TokensSort       = "/tokens/sort"
	TokensSearch     = "/tokens/search"
	CounterIncrement = "/counter/increment"
	CounterDecrement = "/counter/decrement"
	CounterReset     = "/counter/reset"
)

// Pages lists the navigable page paths in navigation order.
func Pages() []string {
	return []string{Root, Auth, Tokens}
}
