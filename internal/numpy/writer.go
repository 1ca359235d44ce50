package numpy

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/melody-ding/go-vidsr/internal/types"
)

// headerReserve is the fixed header size. The frame count is only known at
// Close, so the header is rewritten in place and must never grow.
const headerReserve = 128

// Writer streams rgb24 frames into a NumPy (.npy) file of shape (N, H, W, 3)
type Writer struct {
	file   *os.File
	width  int
	height int
	count  int
	closed bool
}

// NewWriter creates a new NumPy frame writer for the given file
func NewWriter(filepath string, width, height int) (*Writer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	file, err := os.Create(filepath)
	if err != nil {
		return nil, fmt.Errorf("error creating npy file: %w", err)
	}
	w := &Writer{file: file, width: width, height: height}
	if err := w.writeHeader(); err != nil {
		file.Close()
		return nil, err
	}
	return w, nil
}

// Path is the output file
func (w *Writer) Path() string {
	return w.file.Name()
}

// Frames is the number of frames written so far
func (w *Writer) Frames() int {
	return w.count
}

// WriteFrame appends one frame to the array
func (w *Writer) WriteFrame(f types.Frame) error {
	if f.Width != w.width || f.Height != w.height || len(f.Data) != types.FrameSize(w.width, w.height) {
		return fmt.Errorf("frame %d is %dx%d, want %dx%d", f.Index, f.Width, f.Height, w.width, w.height)
	}
	if _, err := w.file.Write(f.Data); err != nil {
		return fmt.Errorf("error writing npy data: %w", err)
	}
	w.count++
	return nil
}

// Close rewrites the header with the final frame count and closes the file
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.writeHeader(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

func (w *Writer) writeHeader() error {
	header, err := createHeader([]int{w.count, w.height, w.width, 3})
	if err != nil {
		return fmt.Errorf("error creating numpy header: %w", err)
	}
	if _, err := w.file.WriteAt(header, 0); err != nil {
		return fmt.Errorf("error writing npy header: %w", err)
	}
	if w.count == 0 {
		if _, err := w.file.Seek(int64(len(header)), 0); err != nil {
			return fmt.Errorf("error seeking past npy header: %w", err)
		}
	}
	return nil
}

// createHeader creates a NumPy v1.0 array header with the given shape,
// padded with spaces and a trailing newline to headerReserve bytes
func createHeader(shape []int) ([]byte, error) {
	var dict bytes.Buffer
	dict.WriteString("{'descr': '|u1', 'fortran_order': False, 'shape': (")
	for i, s := range shape {
		dict.WriteString(fmt.Sprintf("%d", s))
		if i < len(shape)-1 || len(shape) == 1 {
			dict.WriteString(",")
		}
		if i < len(shape)-1 {
			dict.WriteString(" ")
		}
	}
	dict.WriteString("), }")

	// 10 = len(magic+version) + len(header_len_prefix), 1 = trailing newline
	padding := headerReserve - 10 - dict.Len() - 1
	if padding < 0 {
		return nil, fmt.Errorf("shape %v does not fit the %d byte header", shape, headerReserve)
	}

	var fullHeader bytes.Buffer

	// Magic string and version (NPY v1.0) - 8 bytes
	fullHeader.Write([]byte{0x93, 'N', 'U', 'M', 'P', 'Y', 0x01, 0x00})

	// Header length (uint16 little-endian) - 2 bytes
	if err := binary.Write(&fullHeader, binary.LittleEndian, uint16(headerReserve-10)); err != nil {
		return nil, fmt.Errorf("failed to write header dictionary length: %w", err)
	}

	fullHeader.Write(dict.Bytes())
	fullHeader.Write(bytes.Repeat([]byte{' '}, padding))
	fullHeader.WriteByte('\n')

	return fullHeader.Bytes(), nil
}
