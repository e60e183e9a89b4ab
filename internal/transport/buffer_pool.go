package transport

import (
	"sync"
)

// bufferPool holds 9000-byte receive buffers so UDPv4Transport.Receive()
// and its IPv6 counterpart don't allocate one on every call.
//
// Usage:
//
//	bufPtr := GetBuffer()
//	defer PutBuffer(bufPtr)
//	buf := *bufPtr
//	... use buffer ...
var bufferPool = sync.Pool{
	New: func() interface{} {
		// RFC 6762 §17: mDNS messages can exceed 512 bytes (jumbo frames up to 9000).
		buf := make([]byte, 9000)
		return &buf
	},
}

// GetBuffer returns a pointer to a 9000-byte buffer from the pool.
// Callers must call PutBuffer (typically via defer) to return it.
func GetBuffer() *[]byte {
	return bufferPool.Get().(*[]byte)
}

// PutBuffer zeroes and returns a buffer to the pool. The buffer must not
// be used again after this call.
func PutBuffer(bufPtr *[]byte) {
	buf := *bufPtr
	for i := range buf {
		buf[i] = 0
	}

	bufferPool.Put(bufPtr)
}
