package recorder

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/meetline/meetline/internal/appstats"
	"github.com/meetline/meetline/internal/config"
	log "github.com/sirupsen/logrus"
)

// CaptureError wraps a capture or upload failure. It never leaves the
// adapter boundary: recording is a best-effort side channel and must not
// disrupt the call it runs alongside.
type CaptureError struct {
	Op  string
	Err error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture %s: %v", e.Op, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// CaptureSource opens an encoded media stream over the rendered call
// surface. The source emits data in fixed time segments at the requested
// frame rate, MediaRecorder style; Close releases the underlying device
// handle.
type CaptureSource interface {
	Open(ctx context.Context, frameRate int, segmentInterval time.Duration) (io.ReadCloser, string, error)
}

// Uploader ships one assembled artifact to the backend.
type Uploader interface {
	Upload(ctx context.Context, artifact *Artifact) error
}

// Artifact is the assembled recording for one capture run.
type Artifact struct {
	MeetingID string
	MimeType  string
	Data      []byte
}

// CaptureAdapter records the call surface in timed segments and uploads
// the assembled artifact on stop. All failures are logged, counted and
// swallowed. The segment buffer is cleared after every stop, upload
// success or not, so memory stays bounded across repeated recordings in a
// long call.
type CaptureAdapter struct {
	cfg       config.Recorder
	meetingID string
	source    CaptureSource
	uploader  Uploader

	mu       sync.Mutex
	chunks   [][]byte
	running  bool
	stream   io.ReadCloser
	mimeType string
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func New(cfg config.Recorder, meetingID string, source CaptureSource, uploader Uploader) *CaptureAdapter {
	return &CaptureAdapter{
		cfg:       cfg,
		meetingID: meetingID,
		source:    source,
		uploader:  uploader,
	}
}

// Start opens the capture source and begins accumulating segments. A
// source failure (surface missing, capture permission denied) is silent to
// the caller.
func (a *CaptureAdapter) Start(ctx context.Context) {
	// The running flag is claimed before the source opens so a second
	// Start can never race a second stream past the check.
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return
	}
	a.running = true
	a.mu.Unlock()

	stream, mimeType, err := a.source.Open(ctx, a.cfg.FrameRate, a.cfg.SegmentInterval)
	if err != nil {
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
		log.WithField("meeting", a.meetingID).Warnf("capture unavailable: %v", err)
		appstats.OnCaptureError()
		return
	}

	loopCtx, cancel := context.WithCancel(context.Background())

	a.mu.Lock()
	if !a.running {
		// Stop raced the open; release the handle instead of leaking it.
		a.mu.Unlock()
		cancel()
		stream.Close()
		return
	}
	a.stream = stream
	a.mimeType = mimeType
	a.cancel = cancel
	a.mu.Unlock()

	a.wg.Add(1)
	go a.captureLoop(loopCtx, stream)
}

func (a *CaptureAdapter) captureLoop(ctx context.Context, stream io.Reader) {
	defer a.wg.Done()

	buf := make([]byte, 64*1024)
	for {
		n, err := stream.Read(buf)
		if n > 0 {
			segment := make([]byte, n)
			copy(segment, buf[:n])
			a.mu.Lock()
			a.chunks = append(a.chunks, segment)
			a.mu.Unlock()
		}
		if err != nil {
			if err != io.EOF && ctx.Err() == nil {
				log.WithField("meeting", a.meetingID).Warnf("capture read failed: %v", err)
				appstats.OnCaptureError()
			}
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// Recording reports whether a capture run is active.
func (a *CaptureAdapter) Recording() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// BufferedSegments is the number of accumulated segments.
func (a *CaptureAdapter) BufferedSegments() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.chunks)
}

// Stop ends the capture, releases the device handle, assembles the
// accumulated segments into one artifact and uploads it. The buffer is
// cleared before the upload outcome is known; a failed upload drops the
// artifact after the single attempt.
func (a *CaptureAdapter) Stop(ctx context.Context) {
	a.mu.Lock()
	stream := a.stream
	cancel := a.cancel
	a.stream = nil
	a.cancel = nil
	a.running = false
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if stream != nil {
		// Releasing the handle on every exit path keeps the camera and
		// display capture from staying locked after the view unmounts.
		if err := stream.Close(); err != nil {
			log.WithField("meeting", a.meetingID).Debugf("capture close: %v", err)
		}
	}
	a.wg.Wait()

	a.mu.Lock()
	var size int
	for _, c := range a.chunks {
		size += len(c)
	}
	data := make([]byte, 0, size)
	for _, c := range a.chunks {
		data = append(data, c...)
	}
	mimeType := a.mimeType
	a.chunks = nil
	a.mu.Unlock()

	if len(data) == 0 {
		return
	}
	if mimeType == "" {
		mimeType = a.cfg.MimeType
	}

	artifact := &Artifact{
		MeetingID: a.meetingID,
		MimeType:  mimeType,
		Data:      data,
	}
	if err := a.uploader.Upload(ctx, artifact); err != nil {
		log.WithField("meeting", a.meetingID).Warnf("recording upload failed, artifact dropped: %v", err)
		appstats.OnRecordingUpload("failed")
		return
	}
	appstats.OnRecordingUpload("ok")
}
