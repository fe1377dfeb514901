// Package stream provides buffered input and output streams over a single
// descriptor.
//
// An OutputStream queues bytes and hands them to the descriptor on Flush,
// one write per call and bounded by a timeout, so callers can drive it from
// their own event loop. Any write error other than would-block closes the
// stream for good. Neither stream type owns its descriptor: closing the
// descriptor is the caller's job.
package stream
