// Package manifest edits dependency manifests in the Bundler Gemfile format.
//
// Only lines of the form
//
//	gem 'name'[, 'constraint']...[, option: value]
//
// are understood. Every other line is kept byte for byte, so sources, groups,
// comments and platform blocks written by a scaffold survive any number of
// edits. Require merges constraints into an existing gem line or appends a
// new one; applying the same edits twice leaves the file unchanged.
package manifest
