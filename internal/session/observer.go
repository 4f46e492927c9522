package session

import (
	"time"

	"github.com/rbright/parley/internal/fsm"
)

// TokenFetchResult labels one FetchToken call.
type TokenFetchResult string

const (
	TokenCached  TokenFetchResult = "cached"
	TokenFetched TokenFetchResult = "fetched"
	TokenFailed  TokenFetchResult = "failed"
)

// Observer receives lifecycle measurements. Implementations must be safe for
// concurrent use.
type Observer interface {
	ObserveTransition(from, to fsm.State)
	ObserveOutcome(outcome Outcome, elapsed time.Duration)
	ObserveTokenFetch(result TokenFetchResult)
}

type noopObserver struct{}

func (noopObserver) ObserveTransition(fsm.State, fsm.State) {}
func (noopObserver) ObserveOutcome(Outcome, time.Duration)  {}
func (noopObserver) ObserveTokenFetch(TokenFetchResult)     {}
