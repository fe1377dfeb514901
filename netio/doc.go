// Package netio provides the descriptor I/O primitives the streams and the
// process runtime are built on: blocking-mode toggles, poll(2) readiness
// checks with a timeout, and single read/write calls that retry on EINTR
// and wait out EAGAIN once.
//
// All functions take raw descriptors and work equally for sockets and pipes.
package netio
