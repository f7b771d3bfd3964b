package snapshot

import (
	"context"

	"github.com/louisbranch/statehouse/internal/services/shared/stores/auth"
	"github.com/louisbranch/statehouse/internal/services/shared/stores/counter"
	"github.com/louisbranch/statehouse/internal/services/shared/stores/tokens"
	"github.com/louisbranch/statehouse/internal/services/web/storage"
)

// CounterLoader serializes the stored counter.
func CounterLoader(counters storage.CounterStore) Loader {
	return func(ctx context.Context) (string, error) {
		value, err := counters.LoadCounter(ctx, storage.DefaultCounter)
		if err != nil {
			return "", err
		}
		return counter.Codec.Encode(counter.State{Count: value})
	}
}

// TokensLoader serializes the stored token list with default filters.
func TokensLoader(list storage.TokenStore) Loader {
	return func(ctx context.Context) (string, error) {
		fetched, err := list.ListTokens(ctx)
		if err != nil {
			return "", err
		}
		return tokens.Codec.Encode(tokens.WithTokens(fetched).State().Get())
	}
}

// AuthLoader serializes a signed-out auth snapshot. Sessions are bound to
// browser cookies, which gRPC callers do not carry.
func AuthLoader() Loader {
	return func(context.Context) (string, error) {
		return auth.Codec.Encode(auth.State{})
	}
}

// Storage is the server data the loaders read.
type Storage interface {
	storage.CounterStore
	storage.TokenStore
}

// StorageLoaders returns loaders for every store the web service renders.
func StorageLoaders(store Storage) map[string]Loader {
	return map[string]Loader{
		counter.Key: CounterLoader(store),
		tokens.Key:  TokensLoader(store),
		auth.Key:    AuthLoader(),
	}
}
