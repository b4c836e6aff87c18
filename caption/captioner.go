package caption

import (
	"fmt"
	"image"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// ColorThresh denotes the minimum value for an image to be considered color.
// Night-vision (grayscale) frames produce garbage captions and are refused.
const ColorThresh = 15

// Detection classes for MobileNet SSD.
var mobileNetClasses = map[int]string{
	0: "background",
	1: "aeroplane", 2: "bicycle", 3: "bird", 4: "boat",
	5: "bottle", 6: "bus", 7: "car", 8: "cat", 9: "chair",
	10: "cow", 11: "diningtable", 12: "dog", 13: "horse",
	14: "motorbike", 15: "person", 16: "pottedplant",
	17: "sheep", 18: "sofa", 19: "train", 20: "tvmonitor",
}

// Mapping from raw model class names to words usable in a caption sentence.
var captionWords = map[string]string{
	"aeroplane":   "airplane",
	"bicycle":     "bicycle",
	"bird":        "bird",
	"boat":        "boat",
	"bottle":      "bottle",
	"bus":         "bus",
	"car":         "car",
	"cat":         "cat",
	"chair":       "chair",
	"cow":         "cow",
	"diningtable": "dining table",
	"dog":         "dog",
	"horse":       "horse",
	"motorbike":   "motorcycle",
	"person":      "person",
	"pottedplant": "potted plant",
	"sheep":       "sheep",
	"sofa":        "sofa",
	"train":       "train",
	"tvmonitor":   "television",
}

// EmptySceneText is the caption used when no object clears the confidence
// floor.
const EmptySceneText = "nothing recognizable in view"

// Captioner produces a text description and confidence for one frame. Call
// latency is variable; implementations may block for model load or device
// contention.
type Captioner interface {
	Caption(input gocv.Mat) (Result, error)

	// Enabled reports whether captioning is currently switched on. When
	// false, the worker skips submission entirely.
	Enabled() bool
}

// DNNCaptioner captions frames by running an object detection network and
// composing the confident detections into a sentence.
type DNNCaptioner struct {
	net gocv.Net

	// Resized 300x300 input for the network.
	small gocv.Mat

	diff     gocv.Mat
	diffBlur gocv.Mat

	minConfidence float32

	enabled bool
	l       sync.Mutex
}

func NewDNNCaptioner(prototxt, caffeModel []byte, minConfidence float32) (*DNNCaptioner, error) {
	net, err := gocv.ReadNetFromCaffeBytes(prototxt, caffeModel)
	if err != nil {
		return nil, fmt.Errorf("reading caffe model: %w", err)
	}
	if minConfidence <= 0 {
		minConfidence = 0.5
	}
	return &DNNCaptioner{
		net:           net,
		small:         gocv.NewMat(),
		diff:          gocv.NewMat(),
		diffBlur:      gocv.NewMat(),
		minConfidence: minConfidence,
		enabled:       true,
	}, nil
}

// imageColorValue measures how colorful the frame is; grayscale frames
// score near zero.
func (cl *DNNCaptioner) imageColorValue(input gocv.Mat) float32 {
	channels := gocv.Split(input)
	defer func() {
		for _, v := range channels {
			v.Close()
		}
	}()
	gocv.AbsDiff(channels[1], channels[2], &cl.diff)
	gocv.Blur(cl.diff, &cl.diffBlur, image.Point{X: 10, Y: 10})
	_, maxDiff, _, _ := gocv.MinMaxIdx(cl.diffBlur)
	return maxDiff
}

func (cl *DNNCaptioner) Caption(input gocv.Mat) (Result, error) {
	start := time.Now()
	defer func() {
		log.Debugf("Captioner ran in %v", time.Since(start))
	}()

	scale := image.Point{X: 300, Y: 300}
	gocv.Resize(input, &cl.small, scale, 0, 0, gocv.InterpolationLinear)

	if diff := cl.imageColorValue(cl.small); diff < ColorThresh {
		return Result{}, fmt.Errorf("refusing grayscale frame with color value %f", diff)
	}

	blob := gocv.BlobFromImage(cl.small, 0.007843, scale, gocv.NewScalar(127.5, 127.5, 127.5, 0), false, false)
	defer blob.Close()

	cl.net.SetInput(blob, "data")

	detBlob := cl.net.Forward("detection_out")
	defer detBlob.Close()

	detections := gocv.GetBlobChannel(detBlob, 0, 0)
	defer detections.Close()

	found := make(map[string]float32)
	for r := 0; r < detections.Rows(); r++ {
		classID := int(detections.GetFloatAt(r, 1))
		word := captionWords[mobileNetClasses[classID]]
		if word == "" {
			continue
		}

		confidence := detections.GetFloatAt(r, 2)
		if confidence < cl.minConfidence {
			continue
		}
		log.Debugf("Detection of %s, confidence %.2f", word, confidence)

		if found[word] < confidence {
			found[word] = confidence
		}
	}

	text, confidence := composeCaption(found)
	return Result{
		Text:       text,
		Confidence: confidence,
		ProducedAt: time.Now(),
	}, nil
}

// composeCaption turns per-word confidences into a sentence. Words are
// ordered by descending confidence; the overall confidence is the top
// detection's.
func composeCaption(found map[string]float32) (string, float32) {
	if len(found) == 0 {
		return EmptySceneText, 0
	}

	type det struct {
		word string
		conf float32
	}
	var ds []det
	for w, c := range found {
		ds = append(ds, det{w, c})
	}
	sort.Slice(ds, func(i, j int) bool {
		if ds[i].conf != ds[j].conf {
			return ds[i].conf > ds[j].conf
		}
		return ds[i].word < ds[j].word
	})

	var words []string
	for _, d := range ds {
		words = append(words, article(d.word)+" "+d.word)
	}

	var text string
	switch len(words) {
	case 1:
		text = words[0]
	case 2:
		text = words[0] + " and " + words[1]
	default:
		text = strings.Join(words[:len(words)-1], ", ") + " and " + words[len(words)-1]
	}
	return text, ds[0].conf
}

func article(word string) string {
	switch word[0] {
	case 'a', 'e', 'i', 'o', 'u':
		return "an"
	}
	return "a"
}

func (cl *DNNCaptioner) Enable() {
	cl.l.Lock()
	defer cl.l.Unlock()
	cl.enabled = true
	log.Infof("Captioner enabled")
}

func (cl *DNNCaptioner) Disable() {
	cl.l.Lock()
	defer cl.l.Unlock()
	cl.enabled = false
	log.Infof("Captioner disabled")
}

// Toggle flips the enabled state and returns the new value.
func (cl *DNNCaptioner) Toggle() bool {
	cl.l.Lock()
	defer cl.l.Unlock()
	cl.enabled = !cl.enabled
	if cl.enabled {
		log.Infof("Captioner enabled")
	} else {
		log.Infof("Captioner disabled")
	}
	return cl.enabled
}

func (cl *DNNCaptioner) Enabled() bool {
	cl.l.Lock()
	defer cl.l.Unlock()
	return cl.enabled
}

func (cl *DNNCaptioner) Close() {
	cl.net.Close()
	cl.small.Close()
	cl.diff.Close()
	cl.diffBlur.Close()
}
