// Package notify pushes alerts to subscribed browsers when a caption
// mentions a watched word.
package notify

import (
	"strings"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"
	log "github.com/sirupsen/logrus"

	"captioncam/caption"
	"captioncam/config"
)

// Notification is sent to all NotifyListeners registered with Notifier.
type Notification struct {
	TimeString string
	Caption    string
	Word       string
	Confidence float32
}

type NotifyListener interface {
	Notify(n *Notification) error
}

// Notifier watches the caption stream for configured watch words. A match
// at or above the confidence floor, outside quiet hours and past the
// cooldown since the previous alert, fans out to all listeners.
type Notifier struct {
	Listeners []NotifyListener

	l        sync.Mutex
	lastSent time.Time
}

// CaptionUpdated implements caption.Listener.
func (n *Notifier) CaptionUpdated(r caption.Result) {
	cfg := config.Get()
	if cfg == nil || len(cfg.WatchWords) == 0 {
		return
	}

	word := matchWord(r.Text, cfg.WatchWords)
	if word == "" {
		return
	}
	if float64(r.Confidence) < cfg.NotifyMinConfidence {
		// Not interesting enough for notification.
		return
	}

	ts := r.ProducedAt
	if ts.Hour() < cfg.NotificationHoursStart || ts.Hour() >= cfg.NotificationHoursEnd {
		log.Infof("Would send notification for %q, but currently in quiet hours.", word)
		return
	}

	n.l.Lock()
	if !n.lastSent.IsZero() && ts.Sub(n.lastSent) < cfg.NotifyCooldown() {
		n.l.Unlock()
		return
	}
	n.lastSent = ts
	n.l.Unlock()

	notification := &Notification{
		TimeString: ts.Format("3:04 PM"),
		Caption:    r.Text,
		Word:       word,
		Confidence: r.Confidence,
	}
	log.Infof("Sending notification: %v", spew.Sdump(notification))
	for _, l := range n.Listeners {
		go func(l NotifyListener) {
			if err := l.Notify(notification); err != nil {
				log.Errorf("Failed to send notification: %v", err)
			}
		}(l)
	}
}

// matchWord returns the first watch word appearing in the caption, or "".
func matchWord(text string, words []string) string {
	lower := strings.ToLower(text)
	for _, w := range words {
		if w == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(w)) {
			return w
		}
	}
	return ""
}
