package rc1692

import (
	"testing"
	"time"

	"github.com/acomagu/bufpipe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStream joins a blocking pipe for module-to-driver data with a channel
// that captures every frame the driver writes.
type testStream struct {
	r *bufpipe.PipeReader
	w *bufpipe.PipeWriter

	writes chan []byte
}

func newTestStream() *testStream {
	r, w := bufpipe.New(nil)

	return &testStream{
		r:      r,
		w:      w,
		writes: make(chan []byte, 16),
	}
}

func (s *testStream) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

func (s *testStream) Write(p []byte) (int, error) {
	frame := make([]byte, len(p))
	copy(frame, p)

	s.writes <- frame

	return len(p), nil
}

// respond injects bytes as if the module sent them.
func (s *testStream) respond(b []byte) {
	s.w.Write(b)
}

func (s *testStream) expectWrite(t *testing.T) []byte {
	t.Helper()

	select {
	case frame := <-s.writes:
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("no frame written within deadline")
		return nil
	}
}

func (s *testStream) expectNoWrite(t *testing.T, within time.Duration) {
	t.Helper()

	select {
	case frame := <-s.writes:
		t.Fatalf("unexpected frame written: % X", frame)
	case <-time.After(within):
	}
}

func startDevice(t *testing.T, opts ...Option) (*Device, *testStream) {
	t.Helper()

	s := newTestStream()

	opts = append([]Option{
		WithLogging(false),
		WithTimeout(500 * time.Millisecond),
		WithDelay(10 * time.Millisecond),
	}, opts...)

	d := New(opts...)

	go d.Serve(s)

	t.Cleanup(func() {
		d.Shutdown()
		s.w.Close()
	})

	return d, s
}

func awaitResult(t *testing.T, results chan Result) Result {
	t.Helper()

	select {
	case r := <-results:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no result delivered within deadline")
		return Result{}
	}
}

func TestReadTemperature(t *testing.T) {
	d, s := startDevice(t)

	results := make(chan Result, 1)
	require.NoError(t, d.ReadTemperature(func(r Result) { results <- r }))

	assert.Equal(t, []byte{'U'}, s.expectWrite(t))
	s.respond([]byte{0x80})

	r := awaitResult(t, results)
	require.NoError(t, r.Err)
	assert.Equal(t, 0, r.Temperature)
}

func TestReadID(t *testing.T) {
	d, s := startDevice(t)

	results := make(chan Result, 1)
	require.NoError(t, d.ReadID(func(r Result) { results <- r }))

	assert.Equal(t, []byte{'9'}, s.expectWrite(t))
	s.respond([]byte{0x00, 0x11, 0x22, 0x33, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, 0x00, 0x11})

	r := awaitResult(t, results)
	require.NoError(t, r.Err)
	assert.Equal(t, "00 11 22 33 ", r.ID)
	assert.Equal(t, "AA BB CC DD EE FF 00 11 ", r.PAC)
}

func TestFragmentedResponse(t *testing.T) {
	d, s := startDevice(t)

	results := make(chan Result, 4)
	require.NoError(t, d.ReadID(func(r Result) { results <- r }))

	s.expectWrite(t)

	// Deliver the 12-byte response in three fragments.
	s.respond([]byte{0x00, 0x11, 0x22, 0x33})
	time.Sleep(20 * time.Millisecond)
	s.respond([]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE})
	time.Sleep(20 * time.Millisecond)
	s.respond([]byte{0xFF, 0x00, 0x11})

	r := awaitResult(t, results)
	require.NoError(t, r.Err)
	assert.Equal(t, "00 11 22 33 ", r.ID)
	assert.Equal(t, "AA BB CC DD EE FF 00 11 ", r.PAC)

	// The decoder ran exactly once.
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, results)
}

func TestSingleFlightAndOrdering(t *testing.T) {
	d, s := startDevice(t)

	order := make(chan string, 2)
	require.NoError(t, d.ReadRSSI(func(r Result) { order <- "rssi" }))
	require.NoError(t, d.ReadTemperature(func(r Result) { order <- "temperature" }))

	assert.Equal(t, []byte{'S'}, s.expectWrite(t))

	// The second command must not start while the first awaits its response.
	s.expectNoWrite(t, 100*time.Millisecond)

	s.respond([]byte{0x3C})
	assert.Equal(t, []byte{'U'}, s.expectWrite(t))
	s.respond([]byte{0x95})

	assert.Equal(t, "rssi", <-order)
	assert.Equal(t, "temperature", <-order)
}

func TestResponseTimeout(t *testing.T) {
	d, s := startDevice(t, WithTimeout(80*time.Millisecond))

	results := make(chan Result, 1)
	temperatures := make(chan Result, 1)
	require.NoError(t, d.ReadRSSI(func(r Result) { results <- r }))
	require.NoError(t, d.ReadTemperature(func(r Result) { temperatures <- r }))

	s.expectWrite(t)

	// No response: the command fails and the queue advances.
	r := awaitResult(t, results)
	assert.ErrorIs(t, r.Err, ErrResponseTimeout)

	assert.Equal(t, []byte{'U'}, s.expectWrite(t))
	s.respond([]byte{0x95})

	r = awaitResult(t, temperatures)
	require.NoError(t, r.Err)
	assert.Equal(t, 21, r.Temperature)
}

func TestUnsolicitedBytesDiscarded(t *testing.T) {
	d, s := startDevice(t)

	// Bytes arriving while nothing is in flight are dropped and do not leak
	// into the next command's response.
	s.respond([]byte{0xDE, 0xAD})
	time.Sleep(50 * time.Millisecond)

	results := make(chan Result, 1)
	require.NoError(t, d.ReadBattery(func(r Result) { results <- r }))

	assert.Equal(t, []byte{'V'}, s.expectWrite(t))
	s.respond([]byte{0x64})

	r := awaitResult(t, results)
	require.NoError(t, r.Err)
	assert.InDelta(t, 3.00, r.Battery, 0.001)
}

func TestSendMessage(t *testing.T) {
	d, s := startDevice(t)

	message := []byte("hello sigfox")
	require.Len(t, message, 12)

	require.NoError(t, d.SendMessage(message))

	assert.Equal(t, append([]byte{0x0C}, message...), s.expectWrite(t))
}

func TestSendMessageTooLong(t *testing.T) {
	d, s := startDevice(t)

	err := d.SendMessage([]byte("hello sigfox!"))
	assert.ErrorIs(t, err, ErrMessageTooLong)

	// Nothing was queued for transmission.
	s.expectNoWrite(t, 100*time.Millisecond)
}

func TestSwitchModeUnsupported(t *testing.T) {
	d, s := startDevice(t)

	err := d.SwitchMode(Mode(42))
	assert.ErrorIs(t, err, ErrUnsupportedMode)

	s.expectNoWrite(t, 100*time.Millisecond)
}

func TestSwitchMode(t *testing.T) {
	d, s := startDevice(t)

	require.Equal(t, ModeNormal, d.Mode())
	require.NoError(t, d.SwitchMode(ModeConfig))

	assert.Equal(t, []byte{0x00}, s.expectWrite(t))

	// The mode flips on the module's acknowledgement, not at enqueue.
	assert.Equal(t, ModeNormal, d.Mode())

	s.respond([]byte{'>'})
	assert.Eventually(t, func() bool { return d.Mode() == ModeConfig }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, d.SwitchMode(ModeNormal))

	assert.Equal(t, []byte{'X'}, s.expectWrite(t))
	assert.Eventually(t, func() bool { return d.Mode() == ModeNormal }, 2*time.Second, 10*time.Millisecond)
}

func TestConfigure(t *testing.T) {
	d, s := startDevice(t)

	require.NoError(t, d.SwitchMode(ModeConfig))
	s.expectWrite(t)
	s.respond([]byte{'>'})

	require.NoError(t, d.Configure(0x10, 0x2A))

	assert.Equal(t, []byte{'M'}, s.expectWrite(t))
	s.respond([]byte{'>'})

	assert.Equal(t, []byte{0x10, 0x2A, 0xFF}, s.expectWrite(t))
	s.respond([]byte{'>'})
}

func TestReadConfigurationAt(t *testing.T) {
	d, s := startDevice(t)

	require.NoError(t, d.SwitchMode(ModeConfig))
	s.expectWrite(t)
	s.respond([]byte{'>'})

	results := make(chan Result, 1)
	require.NoError(t, d.ReadConfigurationAt(0x10, func(r Result) { results <- r }))

	assert.Equal(t, []byte{'Y'}, s.expectWrite(t))
	s.respond([]byte{'>'})

	assert.Equal(t, []byte{0x10}, s.expectWrite(t))
	s.respond([]byte{0x2A, '>'})

	r := awaitResult(t, results)
	require.NoError(t, r.Err)
	assert.Equal(t, 42, r.Value)
}

func TestInterCommandDelayInNormalMode(t *testing.T) {
	d, s := startDevice(t, WithDelay(150*time.Millisecond))

	require.NoError(t, d.ReadRSSI(nil))
	require.NoError(t, d.ReadRSSI(nil))

	s.expectWrite(t)

	start := time.Now()
	s.respond([]byte{0x3C})

	s.expectWrite(t)
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestNoInterCommandDelayInConfigMode(t *testing.T) {
	d, s := startDevice(t, WithDelay(500*time.Millisecond))

	require.NoError(t, d.SwitchMode(ModeConfig))
	s.expectWrite(t)
	s.respond([]byte{'>'})

	require.NoError(t, d.Configure(0x10, 0x2A))

	assert.Equal(t, []byte{'M'}, s.expectWrite(t))
	s.respond([]byte{'>'})

	// In config mode the next step runs on the next tick. A 500 ms delay
	// would trip the deadline below.
	select {
	case frame := <-s.writes:
		assert.Equal(t, []byte{0x10, 0x2A, 0xFF}, frame)
	case <-time.After(300 * time.Millisecond):
		t.Fatal("config mode should not apply the inter-command delay")
	}

	s.respond([]byte{'>'})
}

func TestEnqueueWithoutServe(t *testing.T) {
	d := New(WithLogging(false))

	// The event channel holds EventChannelSize steps while the dispatcher is
	// not draining it.
	for i := 0; i < EventChannelSize; i++ {
		require.NoError(t, d.ReadRSSI(nil))
	}

	assert.ErrorIs(t, d.ReadRSSI(nil), ErrQueueFull)
}
