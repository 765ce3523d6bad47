package recorder

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/meetline/meetline/internal/config"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

// Mock CaptureSource
type mockSource struct {
	openErr error
	stream  *mockStream
}

func (s *mockSource) Open(ctx context.Context, frameRate int, segmentInterval time.Duration) (io.ReadCloser, string, error) {
	if s.openErr != nil {
		return nil, "", s.openErr
	}
	return s.stream, "video/webm", nil
}

var _ CaptureSource = (*mockSource)(nil)

// mockStream hands out queued segments, then blocks until Close like a live
// capture stream would.
type mockStream struct {
	mu       sync.Mutex
	segments [][]byte
	closed   chan struct{}
	once     sync.Once
}

func newMockStream(segments ...[]byte) *mockStream {
	return &mockStream{
		segments: segments,
		closed:   make(chan struct{}),
	}
}

func (s *mockStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	if len(s.segments) > 0 {
		seg := s.segments[0]
		s.segments = s.segments[1:]
		s.mu.Unlock()
		return copy(p, seg), nil
	}
	s.mu.Unlock()

	<-s.closed
	return 0, io.EOF
}

func (s *mockStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *mockStream) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// Mock Uploader
type mockUploader struct {
	mu        sync.Mutex
	err       error
	artifacts []*Artifact
}

func (u *mockUploader) Upload(ctx context.Context, artifact *Artifact) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.artifacts = append(u.artifacts, artifact)
	return u.err
}

var _ Uploader = (*mockUploader)(nil)

func testRecorderConfig() config.Recorder {
	return config.Recorder{
		FrameRate:       30,
		SegmentInterval: time.Second,
		MimeType:        "video/webm",
	}
}

func TestCaptureAndUpload(t *testing.T) {
	stream := newMockStream([]byte("seg1"), []byte("seg2"), []byte("seg3"))
	uploader := &mockUploader{}
	a := New(testRecorderConfig(), "meeting_1", &mockSource{stream: stream}, uploader)

	a.Start(context.Background())
	assert.True(t, a.Recording())

	assert.Eventually(t, func() bool {
		return a.BufferedSegments() == 3
	}, time.Second, time.Millisecond)

	a.Stop(context.Background())
	assert.False(t, a.Recording())
	assert.True(t, stream.isClosed(), "device handle must be released on stop")
	assert.Zero(t, a.BufferedSegments(), "buffer must be cleared after stop")

	if assert.Len(t, uploader.artifacts, 1) {
		artifact := uploader.artifacts[0]
		assert.Equal(t, "meeting_1", artifact.MeetingID)
		assert.Equal(t, "video/webm", artifact.MimeType)
		assert.Equal(t, []byte("seg1seg2seg3"), artifact.Data)
	}
}

// blockingSource parks Open until the gate closes, like a browser capture
// permission prompt.
type blockingSource struct {
	gate   chan struct{}
	opens  int32
	stream *mockStream
}

func (s *blockingSource) Open(ctx context.Context, frameRate int, segmentInterval time.Duration) (io.ReadCloser, string, error) {
	atomic.AddInt32(&s.opens, 1)
	<-s.gate
	return s.stream, "video/webm", nil
}

var _ CaptureSource = (*blockingSource)(nil)

func TestConcurrentStartOpensSingleStream(t *testing.T) {
	src := &blockingSource{gate: make(chan struct{}), stream: newMockStream()}
	a := New(testRecorderConfig(), "meeting_1", src, &mockUploader{})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Start(context.Background())
		}()
	}

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&src.opens) == 1
	}, time.Second, time.Millisecond)
	close(src.gate)
	wg.Wait()

	// Only one Start made it past the flag; no second stream was opened
	// over the first.
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.opens))
	assert.True(t, a.Recording())

	a.Stop(context.Background())
	assert.True(t, src.stream.isClosed(), "the single handle is released on stop")
}

func TestSourceFailureIsSilent(t *testing.T) {
	uploader := &mockUploader{}
	src := &mockSource{openErr: errors.New("capture permission denied")}
	a := New(testRecorderConfig(), "meeting_1", src, uploader)

	// Start never surfaces the failure; the call goes on without recording.
	a.Start(context.Background())
	assert.False(t, a.Recording())

	a.Stop(context.Background())
	assert.Empty(t, uploader.artifacts)
}

func TestUploadFailureStillClearsBuffer(t *testing.T) {
	stream := newMockStream([]byte("seg1"))
	uploader := &mockUploader{err: errors.New("backend unreachable")}
	a := New(testRecorderConfig(), "meeting_1", &mockSource{stream: stream}, uploader)

	a.Start(context.Background())
	assert.Eventually(t, func() bool {
		return a.BufferedSegments() == 1
	}, time.Second, time.Millisecond)

	a.Stop(context.Background())

	// Single attempt, artifact dropped, buffer gone.
	assert.Len(t, uploader.artifacts, 1)
	assert.Zero(t, a.BufferedSegments())
	assert.False(t, a.Recording())
}

func TestStopWithoutDataSkipsUpload(t *testing.T) {
	stream := newMockStream()
	uploader := &mockUploader{}
	a := New(testRecorderConfig(), "meeting_1", &mockSource{stream: stream}, uploader)

	a.Start(context.Background())
	a.Stop(context.Background())
	assert.Empty(t, uploader.artifacts)
}

func TestRepeatedRecordingsInOneCall(t *testing.T) {
	uploader := &mockUploader{}
	cfg := testRecorderConfig()

	first := newMockStream([]byte("a"))
	a := New(cfg, "meeting_1", &mockSource{stream: first}, uploader)
	a.Start(context.Background())
	assert.Eventually(t, func() bool { return a.BufferedSegments() == 1 }, time.Second, time.Millisecond)
	a.Stop(context.Background())

	second := newMockStream([]byte("b"))
	b := New(cfg, "meeting_1", &mockSource{stream: second}, uploader)
	b.Start(context.Background())
	assert.Eventually(t, func() bool { return b.BufferedSegments() == 1 }, time.Second, time.Millisecond)
	b.Stop(context.Background())

	if assert.Len(t, uploader.artifacts, 2) {
		assert.Equal(t, []byte("a"), uploader.artifacts[0].Data)
		assert.Equal(t, []byte("b"), uploader.artifacts[1].Data)
	}
}
