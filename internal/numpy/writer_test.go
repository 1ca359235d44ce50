package numpy

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melody-ding/go-vidsr/internal/types"
)

func frame(i int64, w, h int, fill byte) types.Frame {
	data := make([]byte, types.FrameSize(w, h))
	for j := range data {
		data[j] = fill
	}
	return types.Frame{Index: i, Width: w, Height: h, Data: data}
}

func TestWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.npy")

	writer, err := NewWriter(path, 3, 2)
	require.NoError(t, err)

	for i := int64(0); i < 4; i++ {
		require.NoError(t, writer.WriteFrame(frame(i, 3, 2, byte(i+1))))
	}
	require.NoError(t, writer.Close())
	assert.Equal(t, 4, writer.Frames())

	fileData, err := os.ReadFile(path)
	require.NoError(t, err)

	// Check magic string and version
	assert.Equal(t, "\x93NUMPY", string(fileData[0:6]))
	assert.Equal(t, []byte{0x01, 0x00}, fileData[6:8])

	headerLen := int(binary.LittleEndian.Uint16(fileData[8:10]))
	assert.Equal(t, headerReserve-10, headerLen)

	header := string(fileData[10 : 10+headerLen])
	assert.Contains(t, header, "'shape': (4, 2, 3, 3)")
	assert.True(t, strings.HasSuffix(header, "\n"))

	data := fileData[10+headerLen:]
	require.Len(t, data, 4*types.FrameSize(3, 2))
	assert.Equal(t, byte(1), data[0])
	assert.Equal(t, byte(4), data[len(data)-1])
}

func TestWriterEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.npy")
	writer, err := NewWriter(path, 8, 8)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	fileData, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, fileData, headerReserve)
	assert.Contains(t, string(fileData), "'shape': (0, 8, 8, 3)")
}

func TestWriterRejectsWrongSize(t *testing.T) {
	writer, err := NewWriter(filepath.Join(t.TempDir(), "x.npy"), 4, 4)
	require.NoError(t, err)
	defer writer.Close()

	assert.Error(t, writer.WriteFrame(frame(0, 2, 2, 0)))
	assert.Equal(t, 0, writer.Frames())
}

func TestCreateHeader(t *testing.T) {
	tests := []struct {
		name  string
		shape []int
		want  string
	}{
		{name: "single dimension", shape: []int{10}, want: "(10,)"},
		{name: "multiple dimensions", shape: []int{10, 256, 256, 3}, want: "(10, 256, 256, 3)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header, err := createHeader(tt.shape)
			require.NoError(t, err)
			assert.Len(t, header, headerReserve)
			assert.Equal(t, "\x93NUMPY", string(header[0:6]))
			assert.Contains(t, string(header), tt.want)
		})
	}
}
