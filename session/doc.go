// Package session provides SessionStore implementations. The in-memory store
// backs the server and CLI by default; persistent stores can be plugged in by
// implementing core.SessionStore.
package session
