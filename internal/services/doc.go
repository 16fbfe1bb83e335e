// Package services provides shared plumbing for the external service
// adapters: the error taxonomy that drives pipeline retry decisions and
// context annotations used for structured logging.
package services
