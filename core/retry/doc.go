// Package retry wraps a single network operation with bounded exponential
// backoff ([Do]) and a deadline ([WithTimeout]). The two compose freely: wrap
// each attempt in WithTimeout inside Do for a per-attempt deadline, or wrap Do
// in WithTimeout for one overall deadline.
//
// Retries are strictly sequential. When attempts run out the last error is
// returned as-is, so callers can still match it with errors.As.
package retry
