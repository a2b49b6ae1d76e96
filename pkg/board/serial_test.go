package board

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/touchamp/pkg/control"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    RawSample
		wantErr bool
	}{
		{
			name: "valid line",
			line: "1234567890123,1532,40211",
			want: RawSample{
				Timestamp: time.UnixMicro(1234567890123),
				Touch:     1532,
				Pot:       40211,
			},
		},
		{
			name: "full scale values",
			line: "1,65535,65535",
			want: RawSample{
				Timestamp: time.UnixMicro(1),
				Touch:     65535,
				Pot:       65535,
			},
		},
		{
			name: "zero values",
			line: "0,0,0",
			want: RawSample{
				Timestamp: time.UnixMicro(0),
			},
		},
		{
			name:    "invalid - wrong number of fields",
			line:    "1234567890123,1532",
			wantErr: true,
		},
		{
			name:    "invalid - too many fields",
			line:    "1234567890123,1532,40211,1",
			wantErr: true,
		},
		{
			name:    "invalid - timestamp",
			line:    "abc,1532,40211",
			wantErr: true,
		},
		{
			name:    "invalid - touch out of range",
			line:    "1234567890123,65536,40211",
			wantErr: true,
		},
		{
			name:    "invalid - negative pot",
			line:    "1234567890123,1532,-1",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLine(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Timestamp.Equal(got.Timestamp))
			assert.Equal(t, tt.want.Touch, got.Touch)
			assert.Equal(t, tt.want.Pot, got.Pot)
		})
	}
}

func TestLevelCommand(t *testing.T) {
	tests := []struct {
		level   int
		want    string
		wantErr bool
	}{
		{level: 0, want: "L0\n"},
		{level: 63, want: "L63\n"},
		{level: 255, want: "L255\n"},
		{level: -1, wantErr: true},
		{level: 256, wantErr: true},
	}

	for _, tt := range tests {
		got, err := levelCommand(tt.level)
		if tt.wantErr {
			assert.Error(t, err, "level=%d", tt.level)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, string(got))
	}
}

func TestReadSamples(t *testing.T) {
	input := strings.Join([]string{
		"# board v1",
		"1000000,1000,0",
		"",
		"garbage",
		"2000000,1500,65535",
		"3000000,70000,1",
		"  4000000,1200,32768  ",
	}, "\n")

	out := make(chan RawSample, 10)
	readSamples(context.Background(), strings.NewReader(input), out)

	var got []RawSample
	for s := range out {
		got = append(got, s)
	}

	require.Len(t, got, 3)
	assert.Equal(t, uint16(1000), got[0].Touch)
	assert.Equal(t, uint16(1500), got[1].Touch)
	assert.Equal(t, uint16(65535), got[1].Pot)
	assert.Equal(t, uint16(1200), got[2].Touch)
	assert.True(t, got[2].Timestamp.Equal(time.UnixMicro(4000000)))
}

func TestReadSamples_DropsWhenFull(t *testing.T) {
	input := "1,1,1\n2,2,2\n3,3,3\n"

	out := make(chan RawSample, 1)
	readSamples(context.Background(), strings.NewReader(input), out)

	s, ok := <-out
	require.True(t, ok)
	assert.Equal(t, uint16(1), s.Touch)

	_, ok = <-out
	assert.False(t, ok)
}

func TestReadSamples_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := make(chan RawSample, 10)
	readSamples(ctx, strings.NewReader("1,1,1\n2,2,2\n"), out)

	_, ok := <-out
	assert.False(t, ok)
}

func TestSerial_NotConnected(t *testing.T) {
	s := NewSerial("/dev/nonexistent-touchamp", 0, 0)

	assert.False(t, s.IsConnected())
	assert.Equal(t, DefaultBaudRate, s.baudRate)
	assert.Equal(t, DefaultBufferSize, s.bufSize)

	err := s.SetOutputLevel(10)
	assert.ErrorIs(t, err, control.ErrActuatorOffline)

	assert.NoError(t, s.Close())
}

func TestSerial_ConnectFailure(t *testing.T) {
	s := NewSerial("/dev/nonexistent-touchamp", 0, 0)

	err := s.Connect()
	assert.Error(t, err)
	assert.False(t, s.IsConnected())
}

func TestSerial_StreamEndTakesBoardOffline(t *testing.T) {
	s := NewSerial("/dev/unplugged-touchamp", 0, 0)
	s.connected = true // as if Connect had opened the port

	s.read(strings.NewReader("1,2000,100\n"))

	assert.False(t, s.IsConnected())
	assert.ErrorIs(t, s.SetOutputLevel(10), control.ErrActuatorOffline)

	got, ok := <-s.Samples()
	require.True(t, ok)
	assert.Equal(t, uint16(2000), got.Touch)
	_, ok = <-s.Samples()
	assert.False(t, ok, "samples channel closed after the stream ends")

	assert.Error(t, s.Connect(), "a board whose stream ended cannot be reused")
	assert.NoError(t, s.Close())
}
