// Package auth holds the identity types shared by the session store,
// the request gate and the backend client.
//
// # Verdicts
//
// The request gate validates the session cookie once per request and
// records the outcome as a Verdict on the request context. Handlers read
// it back instead of asking the backend again:
//
//	if user, ok := auth.UserFromContext(r.Context()); ok {
//	    log.Printf("signed in as %s", user.Email)
//	}
//
// # Backend failures
//
// The backend answers failures with several JSON shapes (a detail string,
// a non_field_errors list, per-field message lists). Classify turns any
// error returned by the backend client into an AuthError whose Kind
// names the shape, and Message renders it for display:
//
//	ae := auth.Classify(err)
//	msg := ae.Message("Login failed.")
//
// Formatting only reads the classified fields, never the raw payload.
package auth
