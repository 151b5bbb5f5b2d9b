package store

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	amerrors "github.com/Aman-CERP/amanrag/internal/errors"
)

// Matrix file layout (little endian):
//
//	magic   [4]byte
//	version uint32
//	rows    uint32
//	dims    uint32
//	data    rows*dims float32
const matrixVersion = 1

var (
	matrixMagic    = [4]byte{'A', 'R', 'M', 'X'}
	flatIndexMagic = [4]byte{'A', 'R', 'F', 'I'}
)

// matrixHeaderSize is the encoded size of matrixHeader.
const matrixHeaderSize = 16

type matrixHeader struct {
	Magic   [4]byte
	Version uint32
	Rows    uint32
	Dims    uint32
}

// WriteMatrix writes the raw embedding matrix to path.
// Every row must have the same length.
func WriteMatrix(path string, rows [][]float32) error {
	dims := 0
	if len(rows) > 0 {
		dims = len(rows[0])
	}
	return writeMatrixFile(path, matrixMagic, rows, dims)
}

// ReadMatrix reads a matrix written by WriteMatrix.
func ReadMatrix(path string) ([][]float32, error) {
	rows, _, err := readMatrixFile(path, matrixMagic)
	return rows, err
}

func writeMatrixFile(path string, magic [4]byte, rows [][]float32, dims int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	w := bufio.NewWriter(f)
	if err := encodeMatrix(w, magic, rows, dims); err != nil {
		_ = f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return f.Close()
}

func encodeMatrix(w io.Writer, magic [4]byte, rows [][]float32, dims int) error {
	hdr := matrixHeader{
		Magic:   magic,
		Version: matrixVersion,
		Rows:    uint32(len(rows)),
		Dims:    uint32(dims),
	}
	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return fmt.Errorf("failed to write matrix header: %w", err)
	}

	buf := make([]byte, 4*dims)
	for i, row := range rows {
		if len(row) != dims {
			return dimensionMismatch(dims, len(row))
		}
		for j, v := range row {
			binary.LittleEndian.PutUint32(buf[4*j:], math.Float32bits(v))
		}
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("failed to write matrix row %d: %w", i, err)
		}
	}
	return nil
}

func readMatrixFile(path string, magic [4]byte) ([][]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	rows, dims, err := decodeMatrix(bufio.NewReader(f), magic, info.Size())
	if err != nil {
		return nil, 0, amerrors.New(amerrors.ErrCodeFileCorrupt, "invalid matrix file "+path, err)
	}
	return rows, dims, nil
}

// decodeMatrix reads a matrix of size bytes from r. The header is checked
// against size before anything is allocated for the data.
func decodeMatrix(r io.Reader, magic [4]byte, size int64) ([][]float32, int, error) {
	var hdr matrixHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	if hdr.Magic != magic {
		return nil, 0, fmt.Errorf("bad magic %q", hdr.Magic[:])
	}
	if hdr.Version != matrixVersion {
		return nil, 0, fmt.Errorf("unsupported version %d", hdr.Version)
	}
	if want, ok := matrixSize(hdr.Rows, hdr.Dims); !ok || want != size {
		return nil, 0, fmt.Errorf("header declares %d rows of %d dims, file has %d bytes",
			hdr.Rows, hdr.Dims, size)
	}

	dims := int(hdr.Dims)
	rows := make([][]float32, 0, hdr.Rows)
	buf := make([]byte, 4*dims)
	for i := uint32(0); i < hdr.Rows; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, 0, fmt.Errorf("read row %d: %w", i, err)
		}
		row := make([]float32, dims)
		for j := range row {
			row[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*j:]))
		}
		rows = append(rows, row)
	}

	return rows, dims, nil
}

// matrixSize returns the encoded size of a rows x dims matrix. It reports
// false for shapes no writer produces: rows without dimensions, or a size
// that overflows int64.
func matrixSize(rows, dims uint32) (int64, bool) {
	if rows == 0 {
		return matrixHeaderSize, true
	}
	if dims == 0 {
		return 0, false
	}
	rowBytes := 4 * int64(dims)
	if int64(rows) > (math.MaxInt64-matrixHeaderSize)/rowBytes {
		return 0, false
	}
	return matrixHeaderSize + int64(rows)*rowBytes, true
}
