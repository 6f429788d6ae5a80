package templates

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/vango-dev/authfront/pkg/auth"
	"github.com/vango-dev/authfront/pkg/toast"
)

//go:embed layout.html pages/*.html
var files embed.FS

// Page names.
const (
	Home           = "home"
	Login          = "login"
	Signup         = "signup"
	VerifyEmail    = "verify_email"
	ConfirmEmail   = "confirm_email"
	ForgotPassword = "forgot_password"
	ResetPassword  = "reset_password"
	Protected      = "protected"
	Error          = "error"
)

// Page is the data every template renders.
type Page struct {
	User          *auth.User
	Authenticated bool
	Toasts        []toast.Toast

	// Error is the form-level error; Notice is an informational banner.
	Error  string
	Notice string

	// Form fields echoed back into inputs.
	Email    string
	Redirect string

	// ResendOffer shows the resend-verification form on the login page.
	ResendOffer bool

	// Reset link parameters.
	UID   string
	Token string

	// Confirm-email outcome: "success", "already_confirmed" or "error".
	Status  string
	Message string

	Detail *auth.ProtectedDetail

	// Status code for the error page.
	Code int
}

// Renderer renders the embedded pages.
type Renderer struct {
	pages map[string]*template.Template
}

var funcs = template.FuncMap{
	"toastClass": func(level toast.Type) string {
		return "toast toast-" + string(level)
	},
}

// New parses the layout with every page.
func New() (*Renderer, error) {
	names, err := fs.Glob(files, "pages/*.html")
	if err != nil {
		return nil, err
	}
	r := &Renderer{pages: make(map[string]*template.Template, len(names))}
	for _, file := range names {
		name := strings.TrimSuffix(path.Base(file), ".html")
		tmpl, err := template.New("layout.html").Funcs(funcs).ParseFS(files, "layout.html", file)
		if err != nil {
			return nil, fmt.Errorf("templates: parse %s: %w", name, err)
		}
		r.pages[name] = tmpl
	}
	return r, nil
}

// Must is like New but panics on error.
func Must() *Renderer {
	r, err := New()
	if err != nil {
		panic(err)
	}
	return r
}

// Has reports whether a page exists.
func (r *Renderer) Has(name string) bool {
	_, ok := r.pages[name]
	return ok
}

// Render executes page into w. Output is buffered so a failing template
// never leaves a half-written response.
func (r *Renderer) Render(w io.Writer, name string, data *Page) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("templates: unknown page %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		return fmt.Errorf("templates: render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}
