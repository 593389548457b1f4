// Package http exposes the session manager as a JSON API routed with chi, with a server-sent
// event stream of context diffs per session.
package http
