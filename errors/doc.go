// Package errors provides the error taxonomy shared by the process and
// stream packages: configuration errors raised synchronously to callers,
// resource exhaustion, child setup failures and closed streams.
package errors
