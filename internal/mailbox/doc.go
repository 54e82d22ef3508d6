// Package mailbox reads mail that an application under test delivered to
// files instead of sending it.
//
// Each recipient has one file in the mailbox directory, named after the
// address. A file holds header lines ("Name: value", folded continuation
// lines allowed), a blank line, and the body.
package mailbox
