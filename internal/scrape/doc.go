// Package scrape defines the core types shared across subsystems: the
// configured fetch tasks, the capture artifacts they produce, the
// collaborator interfaces (solver, session directory, sinks, journal,
// publisher), and the error kinds the pipeline distinguishes.
package scrape
