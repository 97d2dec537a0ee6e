package bytesize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		in   string
		want ByteSize
	}{
		{"0", 0},
		{"1024", 1024},
		{"1024B", 1024},
		{"1Ki", KiB},
		{"1KiB", KiB},
		{"1ki", KiB},
		{"256Mi", 256 * MiB},
		{"2GiB", 2 * GiB},
		{"1Ti", TiB},
		{"1K", KB},
		{"10MB", 10 * MB},
		{"3g", 3 * GB},
		{" 1 Gi ", GiB},
		{"1.5Mi", ByteSize(1.5 * float64(MiB))},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseByteSize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseByteSizeErrors(t *testing.T) {
	for _, in := range []string{"", "   ", "Gi", "12XB", "1iB", "-5", "1.2.3Ki", "99999999999Ti"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseByteSize(in)
			assert.Error(t, err)
		})
	}

	_, err := ParseByteSize("")
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestString(t *testing.T) {
	assert.Equal(t, "0", ByteSize(0).String())
	assert.Equal(t, "1Ki", KiB.String())
	assert.Equal(t, "256Mi", (256 * MiB).String())
	assert.Equal(t, "1000", KB.String())
	assert.Equal(t, "1536Ki", ByteSize(1536*1024).String())
}

func TestTextRoundTrip(t *testing.T) {
	for _, v := range []ByteSize{KiB, 256 * MiB, 4 * GiB, 1000, 7} {
		text, err := v.MarshalText()
		require.NoError(t, err)

		var back ByteSize
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, v, back)
	}

	var b ByteSize
	assert.Error(t, b.UnmarshalText([]byte("lots")))
}

func TestHumanReadable(t *testing.T) {
	assert.Equal(t, "512B", ByteSize(512).HumanReadable())
	assert.Equal(t, "1.50MiB", ByteSize(1536*1024).HumanReadable())
	assert.Equal(t, "2.00GiB", (2 * GiB).HumanReadable())
}

func TestIntConversions(t *testing.T) {
	assert.Equal(t, int64(1024), KiB.Int64())
	assert.Equal(t, 1024, KiB.Int())
	assert.Equal(t, int64(9223372036854775807), ByteSize(1<<63).Int64())
}
