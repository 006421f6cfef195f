// Package errors provides foundational, type-safe error primitives used across taskescrow.
//
// Every failure surfaced by the registry, the record stores and the API is a
// ClassifiedError carrying a category (drives HTTP status and CLI exit codes),
// a severity, a retry hint and structured context.
//
// Example usage:
//
//	err := errors.NewError(errors.CategoryStore, "allocate slot failed").
//		Retryable().
//		WithContext("slot", slot).
//		WithCause(originalErr).
//		Build()
package errors
