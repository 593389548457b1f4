// Package file provides filesystem adapters: a YAML/JSON config store with one document
// per scope and a JSON snapshot store with atomic writes.
package file
