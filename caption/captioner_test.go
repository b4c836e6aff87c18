package caption

import (
	"testing"
)

func TestComposeCaptionEmpty(t *testing.T) {
	text, conf := composeCaption(nil)
	if text != EmptySceneText {
		t.Errorf("expected %q, got %q", EmptySceneText, text)
	}
	if conf != 0 {
		t.Errorf("expected zero confidence, got %v", conf)
	}
}

func TestComposeCaption(t *testing.T) {
	cases := []struct {
		name  string
		found map[string]float32
		text  string
		conf  float32
	}{
		{
			name:  "single",
			found: map[string]float32{"dog": 0.8},
			text:  "a dog",
			conf:  0.8,
		},
		{
			name:  "pair ordered by confidence",
			found: map[string]float32{"dog": 0.8, "person": 0.9},
			text:  "a person and a dog",
			conf:  0.9,
		},
		{
			name:  "vowel article",
			found: map[string]float32{"airplane": 0.7},
			text:  "an airplane",
			conf:  0.7,
		},
		{
			name:  "three with oxford-free join",
			found: map[string]float32{"airplane": 0.95, "person": 0.9, "dog": 0.8},
			text:  "an airplane, a person and a dog",
			conf:  0.95,
		},
		{
			name:  "ties broken alphabetically",
			found: map[string]float32{"cat": 0.5, "bird": 0.5},
			text:  "a bird and a cat",
			conf:  0.5,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			text, conf := composeCaption(tc.found)
			if text != tc.text {
				t.Errorf("got %q, want %q", text, tc.text)
			}
			if conf != tc.conf {
				t.Errorf("got confidence %v, want %v", conf, tc.conf)
			}
		})
	}
}

func TestDisplayString(t *testing.T) {
	r := Result{Text: "a dog", Confidence: 0.42}
	want := "a dog (Confidence: 42%)"
	if got := r.DisplayString(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
