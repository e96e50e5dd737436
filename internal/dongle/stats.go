// internal/dongle/stats.go
package dongle

// RecoveryStats counts packet recovery outcomes. Observational only.
type RecoveryStats struct {
	Attempts    uint64  `yaml:"attempts"`
	Successes   uint64  `yaml:"successes"`
	Failures    uint64  `yaml:"failures"`
	SuccessRate float64 `yaml:"success_rate"` // percent, 0 when nothing was attempted
}

// ConnectionStats counts connect retries and the current failure streak.
type ConnectionStats struct {
	Retries             uint64
	ConsecutiveFailures int
}

// RecoveryStats returns the packet recovery counters.
func (c *Client) RecoveryStats() RecoveryStats {
	s := RecoveryStats{
		Attempts:  c.recoveryAttempts.Load(),
		Successes: c.recoverySuccesses.Load(),
		Failures:  c.recoveryFailures.Load(),
	}
	if s.Attempts > 0 {
		s.SuccessRate = float64(s.Successes) / float64(s.Attempts) * 100
	}
	return s
}

// ConnectionStats returns the connection counters.
func (c *Client) ConnectionStats() ConnectionStats {
	return ConnectionStats{
		Retries:             c.connectRetries.Load(),
		ConsecutiveFailures: int(c.consecutiveFailures.Load()),
	}
}
