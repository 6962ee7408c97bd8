package storageutil

import (
	"context"
	"errors"
	"io"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/pierrec/lz4/v4"
)

// ErrObjectNotFound indicates an object was not found.
var ErrObjectNotFound = errors.New("object not found")

type ReadSizeCloser interface {
	io.Reader
	io.Closer
	Size() int64
}

// ObjectHandler provides common interface for multiple storage providers.
type ObjectHandler interface {
	// Put writes a file to the storage provider with name being the path.
	Put(ctx context.Context, name string) (io.WriteCloser, error)
	// Get reads a file from the storage provider with name being the path.
	// If a key was not found, it will return ErrObjectNotFound.
	Get(ctx context.Context, name string) (ReadSizeCloser, error)
}

// Aborter is implemented by writers that can discard what was written
// instead of publishing it on Close.
type Aborter interface {
	Abort() error
}

// abort discards a partially written object when the provider supports it.
func abort(w io.WriteCloser) {
	if a, ok := w.(Aborter); ok {
		_ = a.Abort()
	}
}

// CompressedWrite encodes d as JSON, compresses it and writes it as objectName.
func CompressedWrite(ctx context.Context, b ObjectHandler, objectName string, d interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ow, err := b.Put(ctx, objectName)
	if err != nil {
		return err
	}
	zw := lz4.NewWriter(ow)
	_ = zw.Apply(lz4.CompressionLevelOption(lz4.Level9))
	jw := gojson.NewEncoder(zw)
	err = jw.Encode(d)
	if err != nil {
		abort(ow)
		return err
	}
	err = zw.Close()
	if err != nil {
		abort(ow)
		return err
	}
	return ow.Close()
}

// UnmarshalCompressed reads compressed JSON data and unmarshals it.
func UnmarshalCompressed(ctx context.Context, b ObjectHandler, objectName string, d interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	or, err := b.Get(ctx, objectName)
	if err != nil {
		return err
	}
	defer or.Close()
	zr := lz4.NewReader(or)
	return gojson.NewDecoder(zr).Decode(d)
}
