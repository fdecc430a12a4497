// Package session tracks which solver session serves which target URL. The
// directory validates recorded sessions with a real solve before reuse,
// replaces the ones the solver no longer honors, and destroys everything it
// created when the process shuts down.
package session
