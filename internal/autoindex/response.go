package autoindex

import (
	"net/http"
	"os"
)

// Kind classifies what a Response carries.
type Kind string

const (
	KindFile             Kind = "file"
	KindDirectory        Kind = "directory"
	KindError            Kind = "error"
	KindMethodNotAllowed Kind = "method_not_allowed"
)

// Response is the framework independent result of Engine.Serve.
type Response struct {
	Status int
	Header http.Header
	// Body holds a rendered listing; empty for files and errors.
	Body []byte
	// File is the open file to stream for GET file requests. The receiver owns it.
	File *os.File
	Size int64
	Kind Kind
	// CacheHit reports whether a listing came from the render cache.
	CacheHit bool
	// Path is the normalized request path including the mount prefix.
	Path string
	// ErrorCode is the OS error identifier for KindError responses.
	ErrorCode string
}

// Close releases the open file, if any.
func (r *Response) Close() error {
	if r == nil || r.File == nil {
		return nil
	}
	err := r.File.Close()
	r.File = nil
	return err
}

func newResponse(status int, kind Kind) *Response {
	return &Response{Status: status, Kind: kind, Header: make(http.Header)}
}
