// Package session provides short-lived keyed storage for per-browser
// state that must survive a redirect, such as flash messages.
//
// Two backends implement Store:
//
//	store := session.NewMemoryStore()
//	// or, shared between instances
//	store, err := session.NewRedisStoreFromURL("redis://localhost:6379/0")
//
// Entries carry an expiry; expired entries are never returned.
package session
