// Package validation provides helpers for contract enforcement in constructors.
package validation

import "fmt"

// AssertNotNil panics if the provided pointer is nil.
// Intended for constructors where dependencies are mandatory (programmer error, not runtime error).
//
// Usage:
//
//	validation.AssertNotNil(holder, "config holder")
func AssertNotNil[T any](ptr *T, name string) {
	if ptr == nil {
		panic(fmt.Sprintf("critical error: %s cannot be nil", name))
	}
}

// AssertPresent panics if an interface dependency (a store, a transport) is nil.
func AssertPresent(dep any, name string) {
	if dep == nil {
		panic(fmt.Sprintf("critical error: %s cannot be nil", name))
	}
}
