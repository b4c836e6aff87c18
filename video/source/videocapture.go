package source

import (
	"image"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// disconnectTimeout is how long a live device may fail reads before the
// source is declared dead and the frame channel closed.
const disconnectTimeout = 5 * time.Second

type VideoCaptureOptions struct {
	// URI takes precedence over Index when non-empty (file path or stream
	// URL). Index opens a local device.
	URI   string
	Index int

	Width  int
	Height int
	FPS    int

	// Enhance applies brightness/contrast scaling and a sharpening pass to
	// each captured frame.
	Enhance bool
}

type VideoCapture struct {
	opts VideoCaptureOptions
	pool *MatPool

	sharpen gocv.Mat
	raw     gocv.Mat
	scaled  gocv.Mat

	mu        sync.Mutex
	size      image.Point
	connected bool
	started   bool

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func NewVideoCapture(opts VideoCaptureOptions) *VideoCapture {
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	// 3x3 sharpening kernel, center-weighted.
	k := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV32F)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			k.SetFloatAt(r, c, -1)
		}
	}
	k.SetFloatAt(1, 1, 9)
	return &VideoCapture{
		opts:    opts,
		pool:    NewMatPool(),
		sharpen: k,
		raw:     gocv.NewMat(),
		scaled:  gocv.NewMat(),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (v *VideoCapture) open() (*gocv.VideoCapture, error) {
	var device interface{} = v.opts.Index
	if v.opts.URI != "" {
		device = v.opts.URI
	}
	cap, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, err
	}
	if v.opts.URI == "" {
		// Local device; request capture properties. Stream and file
		// sources dictate their own.
		cap.Set(gocv.VideoCaptureFrameWidth, float64(v.opts.Width))
		cap.Set(gocv.VideoCaptureFrameHeight, float64(v.opts.Height))
		cap.Set(gocv.VideoCaptureBufferSize, 3)
		cap.Set(gocv.VideoCaptureFPS, float64(v.opts.FPS))
		cap.Set(gocv.VideoCaptureAutoFocus, 1)
	}
	v.mu.Lock()
	v.size = image.Point{
		X: int(cap.Get(gocv.VideoCaptureFrameWidth)),
		Y: int(cap.Get(gocv.VideoCaptureFrameHeight)),
	}
	v.connected = true
	v.mu.Unlock()
	return cap, nil
}

func (v *VideoCapture) enhance(src gocv.Mat, dst *gocv.Mat) {
	src.ConvertToWithParams(&v.scaled, gocv.MatTypeCV8UC3, 1.2, 5)
	gocv.Filter2D(v.scaled, dst, gocv.MatTypeCV8UC3, v.sharpen, image.Point{X: -1, Y: -1}, 0, gocv.BorderDefault)
}

func (v *VideoCapture) Get() <-chan Image {
	v.mu.Lock()
	v.started = true
	v.mu.Unlock()

	c := make(chan Image)
	go func() {
		defer close(v.done)
		defer close(c)

		cap, err := v.open()
		if err != nil {
			log.Errorf("Failed to open video capture: %v", err)
			return
		}
		defer cap.Close()
		defer v.setConnected(false)

		interval := time.Second / time.Duration(v.opts.FPS)
		last := time.Time{}
		failingSince := time.Time{}

		for {
			select {
			case <-v.stop:
				return
			default:
			}

			if ok := cap.Read(&v.raw); !ok {
				if v.opts.URI != "" && !v.isLive() {
					// File playback; a failed read is end of stream.
					log.Infof("Capture source %v reached end of stream", v.opts.URI)
					return
				}
				now := time.Now()
				if failingSince.IsZero() {
					failingSince = now
				} else if now.Sub(failingSince) > disconnectTimeout {
					log.Errorf("Capture source failed reads for %v, disconnecting", disconnectTimeout)
					return
				}
				time.Sleep(10 * time.Millisecond)
				continue
			}
			failingSince = time.Time{}

			// Pace to the configured FPS; some devices deliver faster
			// than requested.
			now := time.Now()
			if !last.IsZero() && now.Sub(last) < interval {
				time.Sleep(interval - now.Sub(last))
				now = time.Now()
			}
			last = now

			out := Image{
				Mat:  v.pool.NewMat(),
				Time: now,
			}
			if v.opts.Enhance {
				v.enhance(v.raw, &out.Mat)
			} else {
				v.raw.CopyTo(&out.Mat)
			}

			select {
			case c <- out:
			case <-v.stop:
				v.pool.ReleaseMat(out.Mat)
				return
			}
		}
	}()
	return c
}

// Release returns a delivered image's mat to the capture pool. Callers that
// are done with an Image from Get should use this instead of Image.Close.
func (v *VideoCapture) Release(i Image) {
	v.pool.ReleaseMat(i.Mat)
}

func (v *VideoCapture) isLive() bool {
	// Heuristic: mp4 paths play as files, anything else (device index,
	// rtsp, http) is treated as live.
	if v.opts.URI == "" {
		return true
	}
	return len(v.opts.URI) < 4 || v.opts.URI[len(v.opts.URI)-4:] != ".mp4"
}

func (v *VideoCapture) setConnected(up bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.connected = up
}

func (v *VideoCapture) Size() image.Point {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.size
}

func (v *VideoCapture) Connected() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.connected
}

// Close stops the capture goroutine and waits for it to exit before
// freeing mats and the pool; the goroutine may be mid-read into v.raw.
func (v *VideoCapture) Close() {
	v.once.Do(func() {
		close(v.stop)
		v.mu.Lock()
		started := v.started
		v.mu.Unlock()
		if started {
			<-v.done
		}
		v.pool.Close()
		v.sharpen.Close()
		v.raw.Close()
		v.scaled.Close()
	})
}
