// Package core provides the internal implementation of the appenv harness.
// It contains the Registry (named instances, selection and parallel
// teardown) and the Instance (a workspace-backed application server driven
// through setup, start, verification and stop).
package core
