// Package sentinel defines Error, a string type for declaring sentinel errors
// as constants. Values compare by content, so errors.Is matches them through
// any number of %w wraps while the declarations themselves stay immutable.
package sentinel
