package imaging

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/png"
	"io"
)

// Favicons are a common direct-guess hit. Only icons with an embedded PNG
// payload are decoded; legacy BMP entries fail as corrupt.

const icoMagic = "\x00\x00\x01\x00"

var errICOUnsupported = errors.New("ico: entry is not PNG encoded")

func init() {
	image.RegisterFormat("ico", icoMagic, decodeICO, decodeICOConfig)
}

type icoEntry struct {
	width, height int
	size, offset  uint32
}

// largestPNGPayload returns the bytes of the biggest icon entry
func largestPNGPayload(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, 16<<20))
	if err != nil {
		return nil, err
	}
	if len(data) < 6 || string(data[:4]) != icoMagic {
		return nil, errors.New("ico: bad header")
	}
	count := int(binary.LittleEndian.Uint16(data[4:6]))
	if count == 0 || len(data) < 6+16*count {
		return nil, errors.New("ico: truncated directory")
	}

	var best *icoEntry
	for i := 0; i < count; i++ {
		raw := data[6+16*i : 6+16*(i+1)]
		e := icoEntry{
			width:  int(raw[0]),
			height: int(raw[1]),
			size:   binary.LittleEndian.Uint32(raw[8:12]),
			offset: binary.LittleEndian.Uint32(raw[12:16]),
		}
		// 0 means 256
		if e.width == 0 {
			e.width = 256
		}
		if e.height == 0 {
			e.height = 256
		}
		if best == nil || e.width*e.height > best.width*best.height {
			best = &e
		}
	}

	end := uint64(best.offset) + uint64(best.size)
	if end > uint64(len(data)) {
		return nil, errors.New("ico: entry out of range")
	}
	payload := data[best.offset:end]
	if !bytes.HasPrefix(payload, []byte("\x89PNG")) {
		return nil, errICOUnsupported
	}
	return payload, nil
}

func decodeICO(r io.Reader) (image.Image, error) {
	payload, err := largestPNGPayload(r)
	if err != nil {
		return nil, err
	}
	return png.Decode(bytes.NewReader(payload))
}

func decodeICOConfig(r io.Reader) (image.Config, error) {
	payload, err := largestPNGPayload(r)
	if err != nil {
		return image.Config{}, err
	}
	return png.DecodeConfig(bytes.NewReader(payload))
}
