// Package transport implements the three inbound/outbound adapters
// (component C2): stdio, TCP, and an embedded HTTP server, all sharing
// the same Transport contract so the IO server never branches on
// install method past startup.
package transport

import "io"

// Transport is the install-method-agnostic contract the IO server talks
// to. Reader returns the stream the request reader scans records off
// of; Writer returns the stream the response writer serializes records
// onto. Close tears down whatever the adapter opened (files, sockets,
// listeners).
type Transport interface {
	Reader() io.Reader
	Writer() io.Writer
	Close() error
}
