package app

import (
	"github.com/riskibarqy/live-links/internal/platform/logging"
	"github.com/riskibarqy/live-links/internal/platform/resilience"
)

type circuitMetrics interface {
	CircuitState(dependency, state string)
}

// watchBreakers logs every breaker transition and mirrors it into the
// circuit gauge when metrics are enabled.
func watchBreakers(logger *logging.Logger, metrics circuitMetrics) func(string, resilience.CircuitState, resilience.CircuitState) {
	return func(dependency string, from, to resilience.CircuitState) {
		if to == resilience.CircuitStateOpen {
			logger.Warn("circuit opened", "dependency", dependency, "from", string(from))
		} else {
			logger.Info("circuit state changed", "dependency", dependency, "from", string(from), "to", string(to))
		}
		if metrics != nil {
			metrics.CircuitState(dependency, string(to))
		}
	}
}
