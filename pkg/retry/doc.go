// Package retry runs an operation again with exponential backoff until it
// succeeds or the policy gives up.
//
//	err := retry.Do(ctx, retry.Default(), func(ctx context.Context) error {
//	    return pool.Ping(ctx)
//	})
//
// Policy.Delay overrides the backoff for a single attempt, which is how the
// HTTP transport honors Retry-After. Wrap an error with Permanent to stop
// retrying right away.
package retry
