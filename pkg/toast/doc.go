// Package toast provides one-shot feedback notifications that survive a
// redirect.
//
// A form handler pushes a toast and redirects; the next page render pops
// it. Messages live in a session.Store keyed by a random id held in a
// browser cookie, so nothing but the id ever leaves the server.
//
//	flash := toast.NewFlasher(session.NewMemoryStore())
//
//	func logout(w http.ResponseWriter, r *http.Request) {
//	    flash.Success(w, r, "Logged out successfully")
//	    http.Redirect(w, r, "/", http.StatusSeeOther)
//	}
//
//	func home(w http.ResponseWriter, r *http.Request) {
//	    msgs, _ := flash.Pop(w, r)
//	    render(w, msgs)
//	}
package toast
