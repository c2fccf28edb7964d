package resilience

// Resilient composes retry-outside-breaker per spec §4.5: the retry driver
// invokes the breaker-wrapped thunk, so a CircuitOpen error from the
// breaker is never itself retried by Retry (shouldRetry returns false for
// KindCircuitOpen).
func Resilient[T any](retryCfg RetryConfig, cb *CircuitBreaker, op func() (T, error)) (T, error) {
	return Retry(retryCfg, func() (T, error) {
		return Execute(cb, op)
	})
}
