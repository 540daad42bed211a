package config

import (
	"strings"

	"github.com/QuantResearchTeam/futures-market-analysis/logger"
)

// TickSize returns the minimum price increment for a contract RIC, keyed by
// the two-letter contract family prefix. Unknown prefixes fall back to the
// configured default and are logged once per call site.
func (c *Config) TickSize(ric string) float64 {
	if len(ric) >= 2 {
		prefix := strings.ToUpper(ric[:2])
		if tick, ok := c.Ticks.Prefixes[prefix]; ok && tick > 0 {
			return tick
		}
	}
	logger.GetLogger().WithComponent("config").WithFields(logger.Fields{
		"ric":     ric,
		"default": c.Ticks.Default,
	}).Warn("tick size not defined for RIC prefix, using default")
	return c.Ticks.Default
}
