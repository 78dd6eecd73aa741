// Package shared holds helpers used by more than one package. Its testutil
// subpackage captures slog records so tests can assert on what a component
// logged.
package shared
