package orchestrator

// #region constants

const defaultMaxRetries = 2 // 2 retries = 3 total attempts

// #endregion

// #region should-retry

// shouldRetry reports whether another attempt may help. Only update errors
// are retried; every other action is a decision about the data.
func shouldRetry(action string, attempts, maxRetries int) bool {
	if action != "update_error" {
		return false
	}
	return attempts <= maxRetries
}

// #endregion
