package intake

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeIntakeMessage(t *testing.T) {
	var buf bytes.Buffer
	fields := []interface{}{
		int64(1000), uint32(0x2A), uint32(0), uint32(3),
		int64(12288), uint16(0), uint16(7),
	}
	for _, f := range fields {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, f))
	}
	buf.WriteByte('5')
	buf.WriteByte(1)

	msg, err := decodeIntakeMessage(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, int64(1000), msg.CreationTime)
	require.Equal(t, uint32(0x2A), msg.JobID)
	require.Equal(t, uint32(3), msg.FilesToSend)
	require.Equal(t, int64(12288), msg.FileSizeToSend)
	require.Equal(t, uint16(7), msg.UniqueNumber)
	require.Equal(t, byte('5'), msg.Priority)
}

func TestDecodeIntakeMessageRejectsShortRecord(t *testing.T) {
	_, err := decodeIntakeMessage([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestSplitNUL(t *testing.T) {
	names := splitNUL([]byte("2a/0/1000_7_0\x00"))
	require.Equal(t, []string{"2a/0/1000_7_0"}, names)
}
