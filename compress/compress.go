// Package compress implements XEP-0138 stream compression (and its
// XEP-0229 LZW variant) as a pair of concrete CompressionEngine
// implementations. The engine interface itself is a collaborator API the
// stream engine treats as external: an application can plug in any engine
// that implements it, and these two (zlib, lzw) are the default,
// always-available choices.
package compress

import (
	"bytes"
	"compress/lzw"
	"compress/zlib"
	"io"
	"sync"
)

// Engine is the compression collaborator the transform chain drives: init
// once, then feed it bytes in each direction until cleanup. It shares the
// init/cleanup lifecycle of the TLS collaborator in the transport package;
// unlike that one, it exposes an explicit per-direction transform
// (Compress/Decompress), since TLS is spliced in as a connection instead.
type Engine interface {
	// Name is the XEP-0138 method token negotiated in <compression/>,
	// e.g. "zlib" or "lzw".
	Name() string
	// Init prepares the engine for use; it never fails for the engines
	// this package provides; it exists so other engines (e.g. a future
	// zstd implementation) can report setup failure.
	Init() error
	// Compress appends the compressed form of p to the outbound stream
	// and returns the bytes to write to the next stage down the chain.
	Compress(p []byte) ([]byte, error)
	// Decompress feeds p (bytes read off the wire or from TLS) through
	// the engine and returns the decompressed XML bytes to hand to the
	// parser.
	Decompress(p []byte) ([]byte, error)
	// Cleanup releases any resources held by the engine. A cleaned-up
	// engine must not be reused.
	Cleanup() error
}

// NewZlib returns a zlib-backed Engine (XEP-0138, always supported).
func NewZlib() Engine {
	return &zlibEngine{}
}

// NewLZW returns an LZW-backed Engine (XEP-0229).
func NewLZW() Engine {
	return &lzwEngine{}
}

// zlibEngine wraps compress/zlib. The writer is created eagerly since it
// needs no input to produce its header; the reader is created lazily on
// the first Decompress call, mirroring the teacher's zlibDelayedSetup:
// zlib.NewReader blocks reading a header from its source immediately, which
// would deadlock a client that hasn't received any compressed bytes yet.
type zlibEngine struct {
	mu     sync.Mutex
	writer *zlib.Writer
	wbuf   bytes.Buffer
	reader io.ReadCloser
	rbuf   bytes.Buffer
}

func (e *zlibEngine) Name() string { return "zlib" }

func (e *zlibEngine) Init() error {
	e.writer = zlib.NewWriter(&e.wbuf)
	return nil
}

func (e *zlibEngine) Compress(p []byte) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.wbuf.Reset()
	if _, err := e.writer.Write(p); err != nil {
		return nil, err
	}
	if err := e.writer.Flush(); err != nil {
		return nil, err
	}
	out := make([]byte, e.wbuf.Len())
	copy(out, e.wbuf.Bytes())
	return out, nil
}

func (e *zlibEngine) Decompress(p []byte) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rbuf.Write(p)
	if e.reader == nil {
		r, err := zlib.NewReader(&e.rbuf)
		if err != nil {
			// Not enough header bytes buffered yet; wait for more.
			if err == io.ErrUnexpectedEOF || err == io.EOF {
				return nil, nil
			}
			return nil, err
		}
		e.reader = r
	}
	var out bytes.Buffer
	buf := make([]byte, 4096)
	for {
		n, err := e.reader.Read(buf)
		out.Write(buf[:n])
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			break
		}
	}
	return out.Bytes(), nil
}

func (e *zlibEngine) Cleanup() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var mc multiCloser
	if e.reader != nil {
		mc = append(mc, e.reader)
	}
	if e.writer != nil {
		mc = append(mc, e.writer)
	}
	return mc.Close()
}

// lzwEngine wraps compress/lzw using the LSB, 8-bit-literal variant XEP-0229
// specifies.
type lzwEngine struct {
	mu     sync.Mutex
	writer io.WriteCloser
	wbuf   bytes.Buffer
	reader io.ReadCloser
	rbuf   bytes.Buffer
}

func (e *lzwEngine) Name() string { return "lzw" }

func (e *lzwEngine) Init() error {
	e.writer = lzw.NewWriter(&e.wbuf, lzw.LSB, 8)
	return nil
}

func (e *lzwEngine) Compress(p []byte) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.wbuf.Reset()
	if _, err := e.writer.Write(p); err != nil {
		return nil, err
	}
	// compress/lzw has no Flush: close the writer to emit every code for
	// p, and start a fresh stream for the next call.
	if err := e.writer.Close(); err != nil {
		return nil, err
	}
	out := make([]byte, e.wbuf.Len())
	copy(out, e.wbuf.Bytes())
	e.writer = lzw.NewWriter(&e.wbuf, lzw.LSB, 8)
	return out, nil
}

func (e *lzwEngine) Decompress(p []byte) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rbuf.Write(p)
	if e.reader == nil {
		e.reader = lzw.NewReader(&e.rbuf, lzw.LSB, 8)
	}
	var out bytes.Buffer
	buf := make([]byte, 4096)
	for {
		n, err := e.reader.Read(buf)
		out.Write(buf[:n])
		if err == io.EOF {
			// One Compress call's stream ended; any further bytes start
			// the next one.
			e.reader = nil
			if e.rbuf.Len() == 0 {
				break
			}
			e.reader = lzw.NewReader(&e.rbuf, lzw.LSB, 8)
			continue
		}
		if err != nil {
			return out.Bytes(), nil
		}
		if n == 0 {
			break
		}
	}
	return out.Bytes(), nil
}

func (e *lzwEngine) Cleanup() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var mc multiCloser
	if e.reader != nil {
		mc = append(mc, e.reader)
	}
	if e.writer != nil {
		mc = append(mc, e.writer)
	}
	return mc.Close()
}

// multiCloser closes every member, always attempting all of them, returning
// the last error encountered if any.
type multiCloser []io.Closer

func (mc multiCloser) Close() error {
	var err error
	for _, c := range mc {
		if e := c.Close(); e != nil {
			err = e
		}
	}
	return err
}
