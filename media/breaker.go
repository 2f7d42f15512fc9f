package media

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/c360/heritagestreams/errors"
)

// hostBreakers keeps one circuit per media host. A nil *hostBreakers runs
// every call.
type hostBreakers struct {
	failures uint32
	cooldown time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	circuits map[string]*gobreaker.CircuitBreaker
}

func newHostBreakers(failures uint32, cooldown time.Duration, logger *slog.Logger) *hostBreakers {
	return &hostBreakers{
		failures: failures,
		cooldown: cooldown,
		logger:   logger,
		circuits: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (h *hostBreakers) execute(rawURL string, fn func() (interface{}, error)) (interface{}, error) {
	if h == nil {
		return fn()
	}

	v, err := h.circuit(hostOf(rawURL)).Execute(fn)
	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: %v", errors.ErrCircuitOpen, err),
			"Resolver", "execute", "request "+rawURL)
	}
	return v, err
}

func (h *hostBreakers) circuit(host string) *gobreaker.CircuitBreaker {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cb, ok := h.circuits[host]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        host,
		MaxRequests: 1,
		Timeout:     h.cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= h.failures
		},
		// Only failures that may clear count against the host; a 404 is the
		// file's problem, not the host's.
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			h.logger.Info("Media host circuit changed",
				"host", name,
				"from", from.String(),
				"to", to.String())
		},
	})
	h.circuits[host] = cb
	return cb
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
