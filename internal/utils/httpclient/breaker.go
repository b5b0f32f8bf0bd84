package httpclient

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// NewBreaker trips after more than maxFailures consecutive failures and probes again after cooldown.
func NewBreaker(name string, maxFailures uint32, cooldown time.Duration, logger *logrus.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(breakerSettings(name, maxFailures, cooldown, logger))
}

// NewTolerantBreaker like NewBreaker, but errors for which tolerated returns true
// are returned to the caller without counting toward tripping.
func NewTolerantBreaker(name string, maxFailures uint32, cooldown time.Duration, logger *logrus.Logger, tolerated func(error) bool) *gobreaker.CircuitBreaker {
	st := breakerSettings(name, maxFailures, cooldown, logger)
	st.IsSuccessful = func(err error) bool {
		return err == nil || tolerated(err)
	}
	return gobreaker.NewCircuitBreaker(st)
}

func breakerSettings(name string, maxFailures uint32, cooldown time.Duration, logger *logrus.Logger) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"circuit":    name,
				"from_state": from.String(),
				"to_state":   to.String(),
			}).Warn("circuit breaker state changed")
		},
	}
}
