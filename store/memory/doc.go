// Package memory is an in-memory PrincipalProvider and AttemptRecorder for
// tests and local development. Nothing survives a restart.
package memory
