package notify

import (
	"testing"
	"time"

	"captioncam/caption"
	"captioncam/config"
)

type recordingListener struct {
	c chan *Notification
}

func (l *recordingListener) Notify(n *Notification) error {
	l.c <- n
	return nil
}

func watchConfig() *config.Config {
	return &config.Config{
		WatchWords:             []string{"person"},
		NotifyMinConfidence:    0.8,
		NotificationHoursStart: 0,
		NotificationHoursEnd:   24,
		NotifyCooldownSec:      60,
	}
}

func newNotifier() (*Notifier, *recordingListener) {
	l := &recordingListener{c: make(chan *Notification, 4)}
	return &Notifier{Listeners: []NotifyListener{l}}, l
}

func at(hour int) time.Time {
	return time.Date(2024, 5, 10, hour, 30, 0, 0, time.Local)
}

func expectNotification(t *testing.T, l *recordingListener) *Notification {
	t.Helper()
	select {
	case n := <-l.c:
		return n
	case <-time.After(time.Second):
		t.Fatal("expected a notification")
		return nil
	}
}

func expectSilence(t *testing.T, l *recordingListener) {
	t.Helper()
	select {
	case n := <-l.c:
		t.Fatalf("unexpected notification: %+v", n)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatchWordMatch(t *testing.T) {
	config.Set(watchConfig())
	n, l := newNotifier()

	n.CaptionUpdated(caption.Result{
		Text:       "a person and a dog",
		Confidence: 0.92,
		ProducedAt: at(12),
	})

	got := expectNotification(t, l)
	if got.Word != "person" {
		t.Errorf("expected matched word %q, got %q", "person", got.Word)
	}
	if got.Caption != "a person and a dog" {
		t.Errorf("unexpected caption %q", got.Caption)
	}
}

func TestNoWatchWordMatch(t *testing.T) {
	config.Set(watchConfig())
	n, l := newNotifier()

	n.CaptionUpdated(caption.Result{
		Text:       "a cat and a chair",
		Confidence: 0.95,
		ProducedAt: at(12),
	})
	expectSilence(t, l)
}

func TestBelowConfidenceFloor(t *testing.T) {
	config.Set(watchConfig())
	n, l := newNotifier()

	n.CaptionUpdated(caption.Result{
		Text:       "a person",
		Confidence: 0.5,
		ProducedAt: at(12),
	})
	expectSilence(t, l)
}

func TestQuietHours(t *testing.T) {
	cfg := watchConfig()
	cfg.NotificationHoursStart = 6
	cfg.NotificationHoursEnd = 20
	config.Set(cfg)
	n, l := newNotifier()

	n.CaptionUpdated(caption.Result{
		Text:       "a person",
		Confidence: 0.95,
		ProducedAt: at(3),
	})
	expectSilence(t, l)
}

func TestCooldown(t *testing.T) {
	config.Set(watchConfig())
	n, l := newNotifier()

	first := at(12)
	n.CaptionUpdated(caption.Result{Text: "a person", Confidence: 0.95, ProducedAt: first})
	expectNotification(t, l)

	// Within cooldown: suppressed.
	n.CaptionUpdated(caption.Result{Text: "a person", Confidence: 0.95, ProducedAt: first.Add(10 * time.Second)})
	expectSilence(t, l)

	// Past cooldown: delivered.
	n.CaptionUpdated(caption.Result{Text: "a person", Confidence: 0.95, ProducedAt: first.Add(2 * time.Minute)})
	expectNotification(t, l)
}

func TestMatchWordCaseInsensitive(t *testing.T) {
	if got := matchWord("A Person walks", []string{"person"}); got != "person" {
		t.Errorf("expected case-insensitive match, got %q", got)
	}
	if got := matchWord("a dog", []string{"", "cat"}); got != "" {
		t.Errorf("expected no match, got %q", got)
	}
}
