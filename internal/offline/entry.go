package offline

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"net/http"

	"github.com/klauspost/compress/zstd"
)

// ResponseType classifies a fetched response the way the cache policy sees it.
type ResponseType string

const (
	// TypeBasic is a same-origin, readable response.
	TypeBasic ResponseType = "basic"
	// TypeCORS is a readable cross-origin response.
	TypeCORS ResponseType = "cors"
	// TypeOpaque is a cross-origin response whose body cannot be inspected.
	TypeOpaque ResponseType = "opaque"
)

type CacheEntry struct {
	Status   int
	Header   http.Header
	Body     []byte
	StoredAt int64 // unix seconds
	Type     ResponseType
	// URL is the final response URL after redirects.
	URL string
}

func (e CacheEntry) size() int64 {
	n := int64(len(e.Body)) + int64(len(e.URL))
	for k, vs := range e.Header {
		n += int64(len(k))
		for _, v := range vs {
			n += int64(len(v))
		}
	}
	return n
}

// Stored values carry a one-byte flag: raw gob or zstd-compressed gob.
const (
	flagRaw  byte = 0
	flagZstd byte = 1

	minCompressSize = 128
)

type codec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newCodec() (*codec, error) {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, err
	}
	return &codec{enc: enc, dec: dec}, nil
}

func (c *codec) close() {
	_ = c.enc.Close()
	c.dec.Close()
}

func (c *codec) encode(ent CacheEntry) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(flagRaw)
	if err := gob.NewEncoder(&buf).Encode(ent); err != nil {
		return nil, err
	}
	raw := buf.Bytes()
	if len(raw) < minCompressSize {
		return raw, nil
	}
	out := c.enc.EncodeAll(raw[1:], []byte{flagZstd})
	if len(out) >= len(raw) {
		return raw, nil
	}
	return out, nil
}

func (c *codec) decode(b []byte) (CacheEntry, error) {
	if len(b) == 0 {
		return CacheEntry{}, fmt.Errorf("empty cache record")
	}
	payload := b[1:]
	switch b[0] {
	case flagRaw:
	case flagZstd:
		var err error
		payload, err = c.dec.DecodeAll(payload, nil)
		if err != nil {
			return CacheEntry{}, fmt.Errorf("decompress cache record: %w", err)
		}
	default:
		return CacheEntry{}, fmt.Errorf("unknown cache record flag %d", b[0])
	}
	var ent CacheEntry
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&ent); err != nil {
		return CacheEntry{}, err
	}
	return ent, nil
}

func cloneHeader(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for k, vs := range h {
		vv := make([]string, len(vs))
		copy(vv, vs)
		out[k] = vv
	}
	return out
}

func init() {
	gob.Register(http.Header{})
}
