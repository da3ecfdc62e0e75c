// Package stream decodes newline delimited JSON into channels.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
)

// NDJSON decodes a stream of JSON values from in.
// The stream ends at EOF, on ctx cancellation, or at the first decode error,
// which is passed to onErr if it is not nil. A json.Decoder cannot resync
// after a syntax error, so there is no skipping ahead.
func NDJSON[T any](ctx context.Context, in io.Reader, onErr func(error)) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		dec := json.NewDecoder(in)
		for {
			var element T
			if err := dec.Decode(&element); err != nil {
				if !errors.Is(err, io.EOF) && onErr != nil {
					onErr(err)
				}
				return
			}
			select {
			case <-ctx.Done():
				return
			case out <- element:
			}
		}
	}()
	return out
}

// Collect drains in, stopping early if ctx is done.
func Collect[T any](ctx context.Context, in <-chan T) []T {
	out := make([]T, 0)
	for element := range in {
		select {
		case <-ctx.Done():
			return out
		default:
			out = append(out, element)
		}
	}
	return out
}
