package capture

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/riskcam/internal/logger"
)

// DefaultJPEGQuality matches the lossy quality the detection API was tuned for.
const DefaultJPEGQuality = 80

// LocalSource grabs frames from a Camera and encodes them as JPEG.
// Capture never fails loudly: a closed camera or a failed read yields (nil, false).
type LocalSource struct {
	camera  Camera
	quality int
	seq     atomic.Uint64

	mu   sync.Mutex
	done chan struct{}
}

// NewLocalSource wraps camera. Quality outside [1,100] falls back to 80.
func NewLocalSource(camera Camera, quality int) *LocalSource {
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return &LocalSource{camera: camera, quality: quality}
}

// Connect opens the camera. Local capture has no remote transport, so the
// controller treats a successful Open as "ready" immediately.
func (s *LocalSource) Connect(_ context.Context) error {
	if err := s.camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	s.mu.Lock()
	s.done = make(chan struct{})
	s.mu.Unlock()
	return nil
}

// Capture reads and encodes the current camera frame.
func (s *LocalSource) Capture() (*Frame, bool) {
	mat, err := s.camera.ReadFrame()
	if err != nil {
		logger.Debug("Capture", "camera read: %v", err)
		return nil, false
	}
	defer mat.Close()

	f, err := EncodeMat(*mat, s.quality)
	if err != nil {
		logger.Debug("Capture", "encode: %v", err)
		return nil, false
	}
	f.Seq = s.seq.Add(1)
	return f, true
}

// Done is closed by Close. A camera never drops on its own.
func (s *LocalSource) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Close releases the camera.
func (s *LocalSource) Close() error {
	s.mu.Lock()
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
	s.mu.Unlock()
	return s.camera.Close()
}

// EncodeMat encodes img as JPEG at the given quality. The returned bytes are
// owned by Go and stay valid after img is closed.
func EncodeMat(img gocv.Mat, quality int) (*Frame, error) {
	if img.Empty() {
		return nil, ErrEmptyFrame
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, err
	}
	defer buf.Close()

	data := append([]byte(nil), buf.GetBytes()...)
	return &Frame{
		Data:       data,
		Width:      img.Cols(),
		Height:     img.Rows(),
		CapturedAt: time.Now(),
	}, nil
}

// DecodeFrame decodes a frame into a BGR Mat. The caller must close it.
func DecodeFrame(f *Frame) (gocv.Mat, error) {
	mat, err := gocv.IMDecode(f.Data, gocv.IMReadColor)
	if err != nil {
		return mat, fmt.Errorf("decode frame: %w", err)
	}
	if mat.Empty() {
		mat.Close()
		return gocv.NewMat(), ErrEmptyFrame
	}
	return mat, nil
}
