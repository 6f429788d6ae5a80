package backend

import (
	"net/http"
	"net/url"
	"sync"
	"time"
)

// RelayJar is an http.CookieJar scoped to one browser request. It hands
// the browser's cookies to the backend and copies every cookie the
// backend sets back onto the browser response, minus the Domain so the
// browser scopes it to this host.
type RelayJar struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	cookies map[string]*http.Cookie
	order   []string
	now     func() time.Time
}

// NewRelayJar seeds a jar from r's cookies. w may be nil, in which case
// backend cookies are only kept for the rest of the exchange.
func NewRelayJar(w http.ResponseWriter, r *http.Request) *RelayJar {
	j := &RelayJar{
		w:       w,
		cookies: make(map[string]*http.Cookie),
		now:     time.Now,
	}
	if r != nil {
		for _, c := range r.Cookies() {
			j.put(&http.Cookie{Name: c.Name, Value: c.Value})
		}
	}
	return j
}

// Cookies implements http.CookieJar.
func (j *RelayJar) Cookies(_ *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]*http.Cookie, 0, len(j.order))
	for _, name := range j.order {
		c := j.cookies[name]
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	return out
}

// SetCookies implements http.CookieJar.
func (j *RelayJar) SetCookies(_ *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		relayed := *c
		relayed.Domain = ""
		relayed.Raw = ""
		relayed.Unparsed = nil
		if relayed.Path == "" {
			relayed.Path = "/"
		}

		if j.expired(c) {
			j.remove(c.Name)
		} else {
			j.put(&http.Cookie{Name: c.Name, Value: c.Value})
		}

		if j.w != nil {
			http.SetCookie(j.w, &relayed)
		}
	}
}

func (j *RelayJar) expired(c *http.Cookie) bool {
	if c.MaxAge < 0 {
		return true
	}
	return !c.Expires.IsZero() && c.Expires.Before(j.now())
}

func (j *RelayJar) put(c *http.Cookie) {
	if _, ok := j.cookies[c.Name]; !ok {
		j.order = append(j.order, c.Name)
	}
	j.cookies[c.Name] = c
}

func (j *RelayJar) remove(name string) {
	if _, ok := j.cookies[name]; !ok {
		return
	}
	delete(j.cookies, name)
	for i, n := range j.order {
		if n == name {
			j.order = append(j.order[:i], j.order[i+1:]...)
			break
		}
	}
}
