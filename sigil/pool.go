package sigil

import "sync"

// bufferPool recycles scratch buffers for Marshal. Append never pools;
// it writes into the caller's buffer.
var bufferPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, 512)
		return &b
	},
}

// maxPooledBuffer caps what goes back in the pool, so one huge document
// does not pin memory forever.
const maxPooledBuffer = 1 << 20

func getBuffer() []byte {
	return *bufferPool.Get().(*[]byte)
}

func putBuffer(b []byte) {
	if cap(b) > maxPooledBuffer {
		return
	}
	b = b[:0]
	bufferPool.Put(&b)
}
