package serve

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"captioncam/caption"
	"captioncam/util"
)

const (
	// Time allowed to write message to the client
	writeWait  = 10 * time.Second
	pingPeriod = 10 * time.Second
)

// CaptionUpdater pushes every caption result to connected websocket
// clients as JSON. Registered as a listener on the result buffer.
type CaptionUpdater struct {
	upgrader websocket.Upgrader
	cs       map[chan []byte]bool
	addc     chan chan []byte
	delc     chan chan []byte
	send     chan []byte
	shutdown *util.Event
}

type captionMessage struct {
	Caption    string
	Confidence float32
	Display    string
	Timestamp  int64
}

// NewCaptionUpdater starts the broadcast hub. The hub goroutine and any
// blocked senders exit once shutdown fires.
func NewCaptionUpdater(shutdown *util.Event) *CaptionUpdater {
	m := &CaptionUpdater{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		cs:       make(map[chan []byte]bool),
		addc:     make(chan chan []byte),
		delc:     make(chan chan []byte),
		send:     make(chan []byte),
		shutdown: shutdown,
	}
	go func() {
		for {
			select {
			case c := <-m.addc:
				m.cs[c] = true
			case c := <-m.delc:
				delete(m.cs, c)
			case msg := <-m.send:
				for k := range m.cs {
					select {
					case k <- msg:
					default:
						// Skip clients not keeping up.
					}
				}
			case <-m.shutdown.Chan():
				return
			}
		}
	}()
	return m
}

// CaptionUpdated implements caption.Listener.
func (m *CaptionUpdater) CaptionUpdated(r caption.Result) {
	js, err := json.Marshal(&captionMessage{
		Caption:    r.Text,
		Confidence: r.Confidence,
		Display:    r.DisplayString(),
		Timestamp:  r.ProducedAt.Unix(),
	})
	if err != nil {
		log.Errorf("Failed to marshal caption update: %v", err)
		return
	}
	select {
	case m.send <- js:
	case <-m.shutdown.Chan():
	}
}

func (m *CaptionUpdater) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if _, ok := err.(websocket.HandshakeError); !ok {
			log.WithField("addr", r.RemoteAddr).Errorf("Websocket handshake failed for caption stream: %v", err)
		}
		return
	}
	go m.serve(ws)
}

func (m *CaptionUpdater) serve(ws *websocket.Conn) {
	clog := log.WithField("addr", ws.RemoteAddr())
	clog.Info("connected to caption update socket")
	defer func() {
		ws.Close()
		clog.Info("disconnected from caption update socket")
	}()
	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	notifyc := make(chan []byte, 1)
	select {
	case m.addc <- notifyc:
	case <-m.shutdown.Chan():
		return
	}
	defer func() {
		select {
		case m.delc <- notifyc:
		case <-m.shutdown.Chan():
		}
	}()

	// Even though we don't care about incoming messages, we need to read from
	// the socket in order to process control messages.
	go func() {
		for {
			if _, _, err := ws.NextReader(); err != nil {
				ws.Close()
				return
			}
		}
	}()

	for {
		select {
		case msg := <-notifyc:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-pingTicker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return
			}
		case <-m.shutdown.Chan():
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		}
	}
}
