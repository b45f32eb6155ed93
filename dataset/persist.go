package dataset

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec selects the compression applied to the persisted payload.
type Codec byte

const (
	// CodecRaw stores the payload uncompressed.
	CodecRaw Codec = iota
	// CodecZstd compresses the payload with zstd.
	CodecZstd
	// CodecLZ4 compresses the payload with lz4.
	CodecLZ4
)

var magic = [4]byte{'O', 'T', 'D', 'S'}

const formatVersion = 1

// ErrBadFormat is returned when a persisted dataset cannot be decoded.
var ErrBadFormat = errors.New("dataset: bad persisted format")

// Save writes the dataset with the given codec: the input matrix
// (row-major), the cost matrix, the optional reference matrix, and the
// feature map, behind a self-describing header.
func (ds *Dataset) Save(w io.Writer, codec Codec) error {
	if _, err := w.Write(magic[:]); err != nil {
		return err
	}
	if _, err := w.Write([]byte{formatVersion, byte(codec)}); err != nil {
		return err
	}

	var payload io.Writer
	var closer io.Closer
	switch codec {
	case CodecRaw:
		payload = w
	case CodecZstd:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return err
		}
		payload = zw
		closer = zw
	case CodecLZ4:
		lw := lz4.NewWriter(w)
		payload = lw
		closer = lw
	default:
		return fmt.Errorf("%w: unknown codec %d", ErrBadFormat, codec)
	}

	if err := ds.writePayload(payload); err != nil {
		return err
	}
	if closer != nil {
		return closer.Close()
	}
	return nil
}

// SaveFile writes the dataset to a file.
func (ds *Dataset) SaveFile(path string, codec Codec) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("dataset: create %s: %w", path, err)
	}
	bw := bufio.NewWriter(f)
	if err := ds.Save(bw, codec); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (ds *Dataset) writePayload(w io.Writer) error {
	input := NewBoolMatrix(ds.nRows, ds.nFeatures+ds.nTargets)
	for i := 0; i < ds.nRows; i++ {
		for j := 0; j < ds.nFeatures; j++ {
			input.Set(i, j, ds.rowFeatures[i].Get(j))
		}
		for t := 0; t < ds.nTargets; t++ {
			input.Set(i, ds.nFeatures+t, ds.rowTargets[i].Get(t))
		}
	}
	if err := writeBoolMatrix(w, input); err != nil {
		return err
	}
	if err := writeFloatMatrix(w, ds.costs); err != nil {
		return err
	}

	hasRef := byte(0)
	if ds.reference != nil {
		hasRef = 1
	}
	if _, err := w.Write([]byte{hasRef}); err != nil {
		return err
	}
	if ds.reference != nil {
		ref := NewBoolMatrix(ds.nRows, ds.nTargets)
		for t := 0; t < ds.nTargets; t++ {
			for i := 0; i < ds.nRows; i++ {
				ref.Set(i, t, ds.reference[t].Get(i))
			}
		}
		if err := writeBoolMatrix(w, ref); err != nil {
			return err
		}
	}

	if err := writeUint32(w, uint32(len(ds.featureMap))); err != nil {
		return err
	}
	for _, set := range ds.featureMap {
		if err := writeUint32(w, uint32(len(set))); err != nil {
			return err
		}
		for _, f := range set {
			if err := writeUint32(w, uint32(f)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Load reads a dataset persisted by Save.
func Load(r io.Reader) (*Dataset, error) {
	var header [6]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	if [4]byte(header[:4]) != magic {
		return nil, fmt.Errorf("%w: bad magic", ErrBadFormat)
	}
	if header[4] != formatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadFormat, header[4])
	}

	var payload io.Reader
	switch Codec(header[5]) {
	case CodecRaw:
		payload = r
	case CodecZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		payload = zr
	case CodecLZ4:
		payload = lz4.NewReader(r)
	default:
		return nil, fmt.Errorf("%w: unknown codec %d", ErrBadFormat, header[5])
	}

	input, err := readBoolMatrix(payload)
	if err != nil {
		return nil, err
	}
	costs, err := readFloatMatrix(payload)
	if err != nil {
		return nil, err
	}

	var hasRef [1]byte
	if _, err := io.ReadFull(payload, hasRef[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	var ref *BoolMatrix
	if hasRef[0] != 0 {
		if ref, err = readBoolMatrix(payload); err != nil {
			return nil, err
		}
	}

	count, err := readUint32(payload)
	if err != nil {
		return nil, err
	}
	featureMap := make([][]int, count)
	for i := range featureMap {
		n, err := readUint32(payload)
		if err != nil {
			return nil, err
		}
		set := make([]int, n)
		for j := range set {
			f, err := readUint32(payload)
			if err != nil {
				return nil, err
			}
			set[j] = int(f)
		}
		featureMap[i] = set
	}

	if ref != nil {
		return New(input, costs, featureMap, WithReference(ref))
	}
	return New(input, costs, featureMap)
}

// LoadFile reads a dataset file persisted by SaveFile.
func LoadFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(bufio.NewReader(f))
}

func writeUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func writeBoolMatrix(w io.Writer, m *BoolMatrix) error {
	if err := writeUint32(w, uint32(m.Rows())); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(m.Cols())); err != nil {
		return err
	}
	buf := make([]byte, (len(m.data)+7)/8)
	for i, v := range m.data {
		if v {
			buf[i/8] |= 1 << (i % 8)
		}
	}
	_, err := w.Write(buf)
	return err
}

func readBoolMatrix(r io.Reader) (*BoolMatrix, error) {
	rows, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	cols, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	m := NewBoolMatrix(int(rows), int(cols))
	buf := make([]byte, (len(m.data)+7)/8)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	for i := range m.data {
		m.data[i] = buf[i/8]&(1<<(i%8)) != 0
	}
	return m, nil
}

func writeFloatMatrix(w io.Writer, m *FloatMatrix) error {
	if err := writeUint32(w, uint32(m.Rows())); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(m.Cols())); err != nil {
		return err
	}
	buf := make([]byte, 8*len(m.data))
	for i, v := range m.data {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	_, err := w.Write(buf)
	return err
}

func readFloatMatrix(r io.Reader) (*FloatMatrix, error) {
	rows, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	cols, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	m := NewFloatMatrix(int(rows), int(cols))
	buf := make([]byte, 8*len(m.data))
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	for i := range m.data {
		m.data[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return m, nil
}
