package session

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/decode"
	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/flow"
	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/transport"
)

type fakeAcquirer struct {
	payload []byte
	err     error
	command []byte
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeAcquirer) Acquire(_ context.Context, command []byte) ([]byte, error) {
	f.command = command
	if f.entered != nil {
		close(f.entered)
	}
	if f.block != nil {
		<-f.block
	}
	return f.payload, f.err
}

func counts(values ...uint16) []byte {
	var out []byte
	for _, v := range values {
		out = binary.LittleEndian.AppendUint16(out, v)
	}
	return out
}

func TestAcquireBuildsWindowFromBinaryCounts(t *testing.T) {
	acq := &fakeAcquirer{payload: counts(100, 106, 112, 112)}
	s := New(acq, []byte{0x53, 0x31}, flow.DefaultCalibration(), nil)

	w, err := s.Acquire(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []byte{0x53, 0x31}, acq.command)
	assert.Equal(t, decode.Binary16, w.Mode)
	require.Len(t, w.Samples, 4)
	assert.InDelta(t, 6/1.2/0.3, w.Samples[1].Flow, 1e-9)
	assert.Equal(t, 0.0, w.Samples[3].Flow)
	assert.Equal(t, w, s.Window())
	assert.True(t, s.Connected())
}

func TestAcquireEmptyPayloadIsNotAnError(t *testing.T) {
	s := New(&fakeAcquirer{payload: []byte{}}, nil, flow.DefaultCalibration(), nil)

	w, err := s.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, w.Empty())
	assert.True(t, s.Window().Empty())
	assert.True(t, s.Connected())
}

func TestAcquireFailureKeepsPreviousWindow(t *testing.T) {
	acq := &fakeAcquirer{payload: []byte(`{"flow_rate": 12.5}`)}
	s := New(acq, nil, flow.DefaultCalibration(), nil)

	first, err := s.Acquire(context.Background())
	require.NoError(t, err)
	require.Len(t, first.Samples, 1)

	acq.payload = nil
	acq.err = &transport.ConnectionError{Addr: "127.0.0.1:65432", Op: "dial", Err: assert.AnError}

	_, err = s.Acquire(context.Background())
	assert.ErrorIs(t, err, transport.ErrConnectionFailure)
	assert.Equal(t, first, s.Window())
	assert.False(t, s.Connected())
}

func TestAcquireRejectsConcurrentRequest(t *testing.T) {
	acq := &fakeAcquirer{
		payload: []byte("1 2 3"),
		block:   make(chan struct{}),
		entered: make(chan struct{}),
	}
	s := New(acq, nil, flow.DefaultCalibration(), nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := s.Acquire(context.Background())
		assert.NoError(t, err)
	}()

	<-acq.entered
	_, err := s.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	close(acq.block)
	wg.Wait()
	assert.Len(t, s.Window().Samples, 3)
}

func TestDisconnectClearsBuffer(t *testing.T) {
	s := New(&fakeAcquirer{payload: []byte("1 2 3")}, nil, flow.DefaultCalibration(), nil)

	_, err := s.Acquire(context.Background())
	require.NoError(t, err)
	require.False(t, s.Window().Empty())

	s.Disconnect()
	assert.True(t, s.Window().Empty())
	assert.False(t, s.Connected())
}

func TestBufferSetGetClear(t *testing.T) {
	var b Buffer
	assert.True(t, b.Get().Empty())

	w := flow.Window{Samples: []flow.Sample{{Time: 0.3, Flow: 1}}}
	b.Set(w)
	assert.Equal(t, w, b.Get())

	b.Clear()
	assert.True(t, b.Get().Empty())
}

func TestBufferConcurrentReadersSeeWholeWindows(t *testing.T) {
	var b Buffer
	small := flow.Window{Samples: []flow.Sample{{Time: 0.3, Flow: 1}}}
	large := flow.Window{Samples: []flow.Sample{{Time: 0.3, Flow: 2}, {Time: 0.6, Flow: 2}}}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			if i%2 == 0 {
				b.Set(small)
			} else {
				b.Set(large)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			w := b.Get()
			switch len(w.Samples) {
			case 0:
			case 1:
				assert.Equal(t, 1.0, w.Samples[0].Flow)
			case 2:
				assert.Equal(t, 2.0, w.Samples[1].Flow)
			default:
				t.Errorf("unexpected window length %d", len(w.Samples))
			}
		}
	}()
	wg.Wait()
}
