// Package mcp exposes the session manager as Model Context Protocol tools, so an orchestrating
// model can drive hand-offs directly.
package mcp
