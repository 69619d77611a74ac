// Package encoding moves binary media through text channels: base64 data
// URIs and the Media JSON type built on them.
package encoding
