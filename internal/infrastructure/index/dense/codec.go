package dense

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// On-disk layout: magic, uint32 dim, uint32 count, then count*dim float32
// values, all little-endian.
var fileMagic = [4]byte{'K', 'B', 'D', '1'}

// Write serializes the index.
func (idx *Index) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(fileMagic[:]); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	header := []uint32{uint32(idx.dim), uint32(len(idx.vectors))}
	if err := binary.Write(bw, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, v := range idx.vectors {
		if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return bw.Flush()
}

// Read deserializes an index previously written with Write.
func Read(r io.Reader) (*Index, error) {
	br := bufio.NewReader(r)
	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if magic != fileMagic {
		return nil, fmt.Errorf("unexpected index magic %q", magic[:])
	}

	var header [2]uint32
	if err := binary.Read(br, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	dim, count := int(header[0]), int(header[1])
	if dim < 0 || count < 0 {
		return nil, fmt.Errorf("corrupt index header: dim=%d count=%d", dim, count)
	}

	idx := New(dim)
	idx.vectors = make([][]float32, 0, count)
	for i := 0; i < count; i++ {
		v := make([]float32, dim)
		if err := binary.Read(br, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("read vector %d: %w", i, err)
		}
		idx.vectors = append(idx.vectors, v)
	}
	return idx, nil
}
