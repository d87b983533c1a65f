// Package server hosts the Fiber HTTP service, the request middleware chain
// and the mount registry that maps request path prefixes onto configured
// directory trees. Handlers receive the matched MountRoute together with the
// mount-relative path; diagnostics under /-/ bypass mount lookup. Keep
// exports narrow and accept explicit dependencies.
package server
