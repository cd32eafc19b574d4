// Package storage persists uploaded files and reports the public URL they are served at.
package storage

import (
	"context"
	"io"
)

// Object is a file to be stored under Name
type Object struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Store writes objects and reports where clients can fetch them
type Store interface {
	Put(ctx context.Context, obj Object) (url string, err error)
	Ping(ctx context.Context) error
}
