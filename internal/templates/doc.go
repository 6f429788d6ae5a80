// Package templates holds the embedded HTML pages of the web app.
//
// Every page is parsed together with the shared layout, so a page file
// only defines its "title" and "content" blocks:
//
//	{{define "title"}}Log in{{end}}
//	{{define "content"}}...{{end}}
//
// Pages render a Page value.
package templates
