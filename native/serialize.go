package native

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/sbl8/sheaf/dtype"
	"github.com/sbl8/sheaf/shape"
)

// Binary array format:
// [Magic(4)][Version(2)][DType(1)][Rank(1)][Dims(4*rank)][PayloadLen(4)][Payload][CRC32(4)]
// All integers little-endian; the checksum covers everything before it.

const (
	serialMagic   = 0x41464853 // "SHFA" in little endian
	serialVersion = 1
)

// Marshal writes the array to its binary form.
func (a *Array) Marshal() ([]byte, error) {
	buf := &bytes.Buffer{}

	if err := binary.Write(buf, binary.LittleEndian, uint32(serialMagic)); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, uint16(serialVersion)); err != nil {
		return nil, err
	}
	if err := buf.WriteByte(byte(a.dt)); err != nil {
		return nil, err
	}
	if a.shp.Rank() > 255 {
		return nil, fmt.Errorf("%w: rank %d exceeds format limit", shape.ErrShape, a.shp.Rank())
	}
	if err := buf.WriteByte(byte(a.shp.Rank())); err != nil {
		return nil, err
	}
	for _, d := range a.shp {
		if err := binary.Write(buf, binary.LittleEndian, uint32(d)); err != nil {
			return nil, err
		}
	}
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(a.data))); err != nil {
		return nil, err
	}
	buf.Write(a.data)

	sum := crc32.ChecksumIEEE(buf.Bytes())
	if err := binary.Write(buf, binary.LittleEndian, sum); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal reads an array from its binary form.
func Unmarshal(data []byte) (*Array, error) {
	if len(data) < 16 {
		return nil, errors.New("native: data too short for array header")
	}

	body, trailer := data[:len(data)-4], data[len(data)-4:]
	if crc32.ChecksumIEEE(body) != binary.LittleEndian.Uint32(trailer) {
		return nil, errors.New("native: data corruption detected")
	}

	buf := bytes.NewReader(body)
	var magic uint32
	if err := binary.Read(buf, binary.LittleEndian, &magic); err != nil {
		return nil, err
	}
	if magic != serialMagic {
		return nil, fmt.Errorf("native: invalid magic number %#x", magic)
	}
	var version uint16
	if err := binary.Read(buf, binary.LittleEndian, &version); err != nil {
		return nil, err
	}
	if version != serialVersion {
		return nil, fmt.Errorf("native: unsupported format version %d", version)
	}

	dtByte, err := buf.ReadByte()
	if err != nil {
		return nil, err
	}
	dt, err := dtype.Normalize(dtype.DType(dtByte))
	if err != nil {
		return nil, err
	}
	rank, err := buf.ReadByte()
	if err != nil {
		return nil, err
	}
	shp := make(shape.Shape, rank)
	for i := range shp {
		var d uint32
		if err := binary.Read(buf, binary.LittleEndian, &d); err != nil {
			return nil, err
		}
		shp[i] = int(d)
	}

	var payloadLen uint32
	if err := binary.Read(buf, binary.LittleEndian, &payloadLen); err != nil {
		return nil, err
	}
	payload := make([]byte, payloadLen)
	if payloadLen > 0 {
		if n, err := buf.Read(payload); err != nil || n != int(payloadLen) {
			return nil, errors.New("native: failed to read payload")
		}
	}
	return NewRaw(dt, shp, payload)
}
