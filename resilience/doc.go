// Package resilience retries operations that failed for transient reasons,
// such as a spawn refused with EAGAIN while the process table is full.
//
//	err := resilience.RetryFunc(ctx, cfg, func() error {
//		return cmd.Execute()
//	})
//
// By default only errors marked retryable by the errors package are
// retried.
package resilience
