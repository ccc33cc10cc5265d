package av

import (
	"context"
	"errors"
	"io"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ProcessFrames drains a frame source through fn with a bounded number of
// concurrent workers, for per-frame work that parallelizes well (pixel
// conversion, analysis, thumbnailing). ProcessFrames closes every
// dispatched frame once its fn call returns; fn must Clone the frame to
// retain it past that point.
//
// Frames are dispatched in source order but fn calls run concurrently, so
// fn must not assume ordering. The first error cancels the context shared
// by remaining workers; ProcessFrames waits for in-flight work before
// returning it. workers <= 0 uses one worker per CPU.
//
// Pipelines are single-owner, so fn must not touch a shared Decoder or
// Encoder without its own serialization.
func ProcessFrames(ctx context.Context, src FrameSource, workers int, fn func(context.Context, *Frame, Time) error) error {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var readErr error
	for {
		if ctx.Err() != nil {
			break
		}
		frame, ts, err := src.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			readErr = err
			break
		}
		g.Go(func() error {
			defer frame.Close()
			return fn(ctx, frame, ts)
		})
	}

	waitErr := g.Wait()
	if readErr != nil {
		return readErr
	}
	return waitErr
}
