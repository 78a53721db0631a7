package shardstore

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// codec turns model values into compressed JSON payloads. EncodeAll and
// DecodeAll are safe for concurrent use.
type codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func newCodec() (*codec, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		_ = encoder.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &codec{encoder: encoder, decoder: decoder}, nil
}

func (c *codec) encode(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return c.encoder.EncodeAll(raw, make([]byte, 0, len(raw)/3)), nil
}

func (c *codec) decode(payload []byte, v any) error {
	raw, err := c.decoder.DecodeAll(payload, nil)
	if err != nil {
		return fmt.Errorf("decompress payload: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return nil
}

func (c *codec) close() {
	_ = c.encoder.Close()
	c.decoder.Close()
}
