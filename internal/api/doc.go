// Package api exposes read-oriented archive operations as transport
// friendly DTOs shared by the HTTP server and the CLI client.
package api
