package printer

import (
	"bytes"
	"context"
	"io"
)

type ctxkey string

const writerKey = ctxkey("writerKey")

// WithWriter sets the writer to be used within the context of the printer
// function.
func WithWriter(ctx context.Context, writer io.Writer) context.Context {
	return context.WithValue(ctx, writerKey, writer)
}

// GetWriter returns the writer from the context, or false when unset.
func GetWriter(ctx context.Context) (io.Writer, bool) {
	w, ok := ctx.Value(writerKey).(io.Writer)
	return w, ok
}

// DeferredWriter buffers everything written to it until Flush.
type DeferredWriter struct {
	buff   bytes.Buffer
	writer io.Writer
}

func NewDeferredWriter(w io.Writer) *DeferredWriter {
	return &DeferredWriter{writer: w}
}

func (dw *DeferredWriter) Write(p []byte) (int, error) {
	return dw.buff.Write(p)
}

func (dw *DeferredWriter) Flush() error {
	_, err := dw.buff.WriteTo(dw.writer)
	return err
}
