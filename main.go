package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"captioncam/caption"
	"captioncam/config"
	"captioncam/notify"
	"captioncam/serve"
	"captioncam/snapshot"
	"captioncam/util"
	"captioncam/video/sink"
	"captioncam/video/source"
)

var (
	port       = flag.Int("port", 8080, "Port to host web frontend.")
	configPath = flag.String("config", "config.json", "Path to JSON configuration file.")
	headless   = flag.Bool("headless", false, "Disable the local display window.")
	verbose    = flag.Bool("verbose", false, "Enable debug logging.")
)

func main() {
	flag.Parse()
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := config.Load(ctx, *configPath); err != nil {
		log.Fatalf("Failed to load configuration from %v: %v", *configPath, err)
	}
	cfg := config.Get()

	prototxt, err := os.ReadFile(cfg.ModelPrototxtPath)
	if err != nil {
		log.Fatalf("Failed to read model prototxt: %v", err)
	}
	model, err := os.ReadFile(cfg.ModelCaffePath)
	if err != nil {
		log.Fatalf("Failed to read model weights: %v", err)
	}
	captioner, err := caption.NewDNNCaptioner(prototxt, model, float32(cfg.MinDetectionConfidence))
	if err != nil {
		log.Fatalf("Failed to create captioner: %v", err)
	}
	defer captioner.Close()

	cap := source.NewVideoCapture(source.VideoCaptureOptions{
		URI:     cfg.CameraURI,
		Index:   cfg.CameraIndex,
		Width:   cfg.CaptureWidth,
		Height:  cfg.CaptureHeight,
		FPS:     cfg.CaptureFPS,
		Enhance: cfg.EnhanceFrames,
	})
	defer cap.Close()
	frames := cap.Get()

	mailbox := source.NewMailbox()
	defer mailbox.Close()

	results := caption.NewResults(cfg.BufferCapacity)
	pacer := caption.NewPacer(caption.PacerOptions{
		TargetLatency: cfg.TargetLatency(),
		MinInterval:   cfg.MinInterval(),
		MaxInterval:   cfg.MaxInterval(),
		P:             cfg.Gains.P,
		I:             cfg.Gains.I,
		D:             cfg.Gains.D,
	})

	store, err := snapshot.NewStore(cfg.SnapshotPath, cfg.SnapshotMaxSize)
	if err != nil {
		log.Fatalf("Failed to create snapshot store: %v", err)
	}

	db, err := gorm.Open(sqlite.Open(cfg.DatabasePath), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	push, err := notify.NewWebPush(db)
	if err != nil {
		log.Fatalf("Failed to initialize web push: %v", err)
	}
	notifier := &notify.Notifier{
		Listeners: []notify.NotifyListener{push},
	}

	shutdown := util.NewEvent()

	captionws := serve.NewCaptionUpdater(shutdown)
	results.AddListener(notifier)
	results.AddListener(captionws)

	mjpegServer := sink.NewMJPEGServer()
	msraw := mjpegServer.NewStream("raw")
	defer msraw.Close()
	msannot := mjpegServer.NewStream("annotated")
	defer msannot.Close()

	worker := &caption.Worker{
		Frames:    mailbox,
		Captioner: captioner,
		Pacer:     pacer,
		Results:   results,
		Snapshots: store,
		Shutdown:  shutdown,
		Done:      util.NewEvent(),
	}
	go worker.Run()

	snapRequest := make(chan bool, 1)
	var window *sink.Window
	if !*headless {
		window = sink.NewWindow("Captioncam")
		defer window.Close()
		window.KeyFunc = func(k sink.KeyAction) {
			switch k {
			case sink.KeyQuit:
				shutdown.Notify()
			case sink.KeyToggle:
				captioner.Toggle()
			case sink.KeySnapshot:
				select {
				case snapRequest <- true:
				default:
				}
			}
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/mjpeg", mjpegServer)
	mux.Handle("/captions", captionws)
	mux.Handle("/snapshots", &serve.MetaServer{Store: store})
	mux.Handle("/snapshot", &serve.ImageServer{Store: store})
	mux.Handle("/metrics", promhttp.Handler())
	push.RegisterHandlers(mux)
	if cfg.WebRoot != "" {
		mux.Handle("/", http.FileServer(http.Dir(cfg.WebRoot)))
	}

	go func() {
		log.Infof("Hosting web frontend on port %d", *port)
		log.Println(http.ListenAndServe(fmt.Sprintf(":%d", *port), handlers.LoggingHandler(os.Stdout, mux)))
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	snapMat := gocv.NewMat()
	defer snapMat.Close()

loop:
	for {
		select {
		case i, ok := <-frames:
			if !ok {
				log.Infof("Capture source exhausted, shutting down")
				break loop
			}
			msraw.Put(i.Mat)
			mailbox.Set(i)

			var text string
			var conf float32
			if r, ok := results.Latest(); ok {
				text = r.Text
				conf = results.AverageConfidence()
			}
			i = sink.DrawCaption(i, text, conf)
			if window != nil {
				window.Put(i)
			}
			msannot.Put(i.Mat)

			select {
			case <-snapRequest:
				if _, ok := mailbox.Peek(&snapMat); ok {
					if _, err := store.Save(snapMat, time.Now(), text, conf); err != nil {
						log.Errorf("Failed to save requested snapshot: %v", err)
					}
				}
			default:
			}

			cap.Release(i)
		case sig := <-sigs:
			log.Infof("Caught signal %v, shutting down", sig)
			break loop
		case <-shutdown.Chan():
			break loop
		}
	}

	// Wait for the worker before the deferred closes free the captioner
	// and mailbox; an inference call may still be in flight.
	shutdown.Notify()
	worker.Done.Wait()
}
