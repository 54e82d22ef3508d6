// Package install runs dependency installation for an application workspace.
//
// An Installer remembers which named steps have already succeeded. The first
// run of a step may fall back from local-only resolution to network
// resolution when the package manager reports that dependencies are missing
// locally; later runs of the same step stay local. Each attempt retries a
// handful of times when the package manager fails to connect to its remote
// source.
//
// Rules holds the compatibility pins applied to manifests for old framework
// and runtime versions.
package install
