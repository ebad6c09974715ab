// Package aio implements the buffered asynchronous I/O pipeline used to
// service large read and write requests against a single file handle.
//
// A request is split into fixed-size chunks. Up to Config.Depth chunks are
// kept in flight as overlapped operations through a FileHandleService, and a
// WaitSet multiplexes their completions. File offsets are handed out by a
// single cursor, so in-flight ranges never overlap, while completions may
// arrive in any order.
//
// Architecture:
//
//	Engine.BufferedRead / Engine.BufferedWrite
//	    |-- bufferPool      (transfer buffers + overlapped contexts)
//	    |-- submission      (prime to depth, claim chunks at the cursor)
//	    |-- completion loop (wait, retire, resubmit, drain)
//	    |
//	    |-- FileHandleService (overlapped read/write, GetOverlappedResult)
//	    |-- WaitSet           (wait for any signaled buffer)
//
// The engine never spawns goroutines. The only blocking call is
// WaitSet.Wait; parallelism lives in the file handle service.
//
// Usage:
//
//	eng, err := aio.New(svc, aio.DefaultConfig())
//	out, err := eng.BufferedRead(ctx, h, buf, offset)
//	switch out.Status {
//	case aio.StatusOK, aio.StatusShortEOF:
//	    // out.Bytes valid bytes at buf[:out.Bytes]
//	case aio.StatusError:
//	    // err is an *aio.IOError carrying out.Code
//	}
package aio
