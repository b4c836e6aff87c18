// Package snapshot persists captioned frames to disk: a JPEG per event with
// a JSON sidecar describing the caption, garbage collected oldest-first
// against a size cap.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

const (
	ExtImage = "_frame.jpg"
	ExtMeta  = "_meta.json"

	// FileTimeLayout defines the format of filenames. Millisecond
	// precision; saves can arrive faster than once per second.
	// See https://golang.org/src/time/format.go.
	FileTimeLayout = "20060102-150405.000-Z0700"

	jpegQuality = 95
)

// Meta is the JSON sidecar written next to each snapshot image.
type Meta struct {
	Caption    string
	Confidence float32
	Timestamp  int64
}

type Record struct {
	ID   string
	Time time.Time

	Caption    string
	Confidence float32

	ImagePath string
	MetaPath  string
	Size      int64
}

type Store struct {
	BasePath string

	// MaxSize caps total bytes held; oldest records are removed first once
	// exceeded. Zero disables collection.
	MaxSize int64

	l       sync.Mutex
	records []*Record
}

func NewStore(path string, maxSize int64) (*Store, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, err
	}
	s := &Store{
		BasePath: path,
		MaxSize:  maxSize,
	}
	if err := s.rescan(); err != nil {
		return nil, err
	}
	log.Infof("Snapshot store at %v holding %d records", path, len(s.records))
	return s, nil
}

// rescan rebuilds the record list from directory contents, pairing images
// with their sidecars by timestamp prefix.
func (s *Store) rescan() error {
	m := make(map[time.Time]*Record)

	files, err := os.ReadDir(s.BasePath)
	if err != nil {
		return err
	}

	for _, file := range files {
		b := file.Name()
		if len(b) < len(FileTimeLayout) {
			continue
		}
		t, err := time.Parse(FileTimeLayout, b[:len(FileTimeLayout)])
		if err != nil {
			continue
		}

		v := m[t]
		if v == nil {
			v = &Record{
				ID:   t.Format(FileTimeLayout),
				Time: t,
			}
		}

		p := filepath.Join(s.BasePath, b)
		info, err := file.Info()
		if err != nil {
			continue
		}
		switch {
		case strings.HasSuffix(b, ExtImage):
			v.ImagePath = p
			v.Size += info.Size()
		case strings.HasSuffix(b, ExtMeta):
			v.MetaPath = p
			v.Size += info.Size()
			if meta, err := readMeta(p); err == nil {
				v.Caption = meta.Caption
				v.Confidence = meta.Confidence
			}
		default:
			continue
		}

		m[t] = v
	}

	records := make([]*Record, 0, len(m))
	for _, v := range m {
		records = append(records, v)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Time.After(records[j].Time)
	})

	s.l.Lock()
	defer s.l.Unlock()
	s.records = records
	return nil
}

func readMeta(path string) (*Meta, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	meta := &Meta{}
	if err := json.NewDecoder(f).Decode(meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// Save writes one captioned frame and its sidecar, then collects old
// records if over the size cap.
func (s *Store) Save(img gocv.Mat, t time.Time, text string, confidence float32) (*Record, error) {
	if existing := s.GetRecordByID(t.Format(FileTimeLayout)); existing != nil {
		// Same-instant save would overwrite the existing files and
		// double-count the record; keep the first.
		log.Debugf("Skipping duplicate snapshot %v", existing.ID)
		return existing, nil
	}

	base := filepath.Join(s.BasePath, t.Format(FileTimeLayout))
	r := &Record{
		ID:         t.Format(FileTimeLayout),
		Time:       t,
		Caption:    text,
		Confidence: confidence,
		ImagePath:  base + ExtImage,
		MetaPath:   base + ExtMeta,
	}

	if ok := gocv.IMWriteWithParams(r.ImagePath, img, []int{gocv.IMWriteJpegQuality, jpegQuality}); !ok {
		return nil, fmt.Errorf("failed to encode %v", r.ImagePath)
	}

	mb, err := json.Marshal(&Meta{
		Caption:    text,
		Confidence: confidence,
		Timestamp:  t.Unix(),
	})
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(r.MetaPath, mb, 0644); err != nil {
		return nil, err
	}

	for _, p := range []string{r.ImagePath, r.MetaPath} {
		if info, err := os.Stat(p); err == nil {
			r.Size += info.Size()
		}
	}

	s.l.Lock()
	s.records = append([]*Record{r}, s.records...)
	s.l.Unlock()

	log.Infof("Saved snapshot %v (%q)", r.ID, text)
	s.gc()
	return r, nil
}

// gc removes oldest records until total size fits under MaxSize.
func (s *Store) gc() {
	if s.MaxSize <= 0 {
		return
	}

	s.l.Lock()
	var total int64
	for _, r := range s.records {
		total += r.Size
	}
	var evict []*Record
	for total > s.MaxSize && len(s.records) > 1 {
		oldest := s.records[len(s.records)-1]
		evict = append(evict, oldest)
		s.records = s.records[:len(s.records)-1]
		total -= oldest.Size
	}
	s.l.Unlock()

	for _, r := range evict {
		log.Infof("Evicting snapshot %v to stay under size cap", r.ID)
		for _, p := range []string{r.ImagePath, r.MetaPath} {
			if p == "" {
				continue
			}
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				log.Errorf("Failed to remove %v: %v", p, err)
			}
		}
	}
}

// Records returns held records, newest first.
func (s *Store) Records() []*Record {
	s.l.Lock()
	defer s.l.Unlock()
	out := make([]*Record, len(s.records))
	copy(out, s.records)
	return out
}

func (s *Store) GetRecordByID(id string) *Record {
	s.l.Lock()
	defer s.l.Unlock()
	for _, r := range s.records {
		if r.ID == id {
			return r
		}
	}
	return nil
}
