// Package api serves the quickplan web interface: full pages, the htmx
// fragments they swap in, static assets, health and metrics endpoints.
package api
