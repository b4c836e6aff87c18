package serve

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"captioncam/snapshot"
)

type MetaEntry struct {
	ID         string
	Timestamp  int64
	Caption    string
	Confidence float32
	SizeBytes  int64
}

type MetaResponse struct {
	Items []*MetaEntry

	ItemsTotalSize  int64
	ItemsCount      int
	OldestTimestamp int64
}

func toMetaEntry(r *snapshot.Record) *MetaEntry {
	return &MetaEntry{
		ID:         r.ID,
		Timestamp:  r.Time.Unix(),
		Caption:    r.Caption,
		Confidence: r.Confidence,
		SizeBytes:  r.Size,
	}
}

// MetaServer lists stored snapshots as JSON, newest first.
type MetaServer struct {
	Store *snapshot.Store
}

func (s *MetaServer) BuildResponse() *MetaResponse {
	records := s.Store.Records()

	resp := &MetaResponse{}
	var sz int64
	for _, r := range records {
		resp.Items = append(resp.Items, toMetaEntry(r))
		sz += r.Size
		resp.OldestTimestamp = r.Time.Unix()
	}
	resp.ItemsTotalSize = sz
	resp.ItemsCount = len(records)
	return resp
}

func (s *MetaServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	js, err := json.Marshal(s.BuildResponse())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(js)
}

// ImageServer serves a stored snapshot JPEG selected by id.
type ImageServer struct {
	Store *snapshot.Store
}

func (s *ImageServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id := r.Form.Get("id")
	rec := s.Store.GetRecordByID(id)
	if rec == nil {
		http.Error(w, fmt.Sprintf("No record found for id %v", id), http.StatusNotFound)
		return
	}

	f, err := os.Open(rec.ImagePath)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	defer f.Close()

	w.Header().Add("Content-Type", "image/jpeg")
	io.Copy(w, f)
}
