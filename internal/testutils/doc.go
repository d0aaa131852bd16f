// Package testutils contains in-memory stand-ins for the MongoDB managers, for use in tests of packages that depend on them.
package testutils
