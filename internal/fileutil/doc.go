// Package fileutil holds the small filesystem helpers used while building an
// application workspace: directory creation and recreation, and file copies
// that can preserve permissions and publish atomically.
package fileutil
