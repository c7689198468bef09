package mqtt

import "testing"

func TestTopics(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"status", NewTopics("iobridge").Status(), "iobridge/status"},
		{"reading", NewTopics("iobridge").Reading("adc1"), "iobridge/readings/adc1"},
		{"all readings", NewTopics("iobridge").AllReadings(), "iobridge/readings/+"},
		{"command", NewTopics("iobridge").Command("/touch1/threshold"), "iobridge/command/touch1/threshold"},
		{"command without slash", NewTopics("iobridge").Command("list"), "iobridge/command/list"},
		{"command wildcard", NewTopics("iobridge").CommandWildcard(), "iobridge/command/#"},
		{"nested prefix", NewTopics("/studio/pi1/").Reading("tilt"), "studio/pi1/readings/tilt"},
		{"empty prefix", NewTopics("").Status(), "iobridge/status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestTopics_CommandAddress(t *testing.T) {
	topics := NewTopics("studio/pi1")
	tests := []struct {
		topic  string
		want   string
		wantOK bool
	}{
		{"studio/pi1/command/touch1/threshold", "/touch1/threshold", true},
		{"studio/pi1/command/create", "/create", true},
		{"studio/pi1/command/", "", false},
		{"studio/pi1/readings/adc1", "", false},
		{"other/command/adc1", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			got, ok := topics.CommandAddress(tt.topic)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("CommandAddress(%q) = %q, %v; want %q, %v", tt.topic, got, ok, tt.want, tt.wantOK)
			}
		})
	}

	// Round trip through the builder.
	if got, _ := topics.CommandAddress(topics.Command("/oled/text")); got != "/oled/text" {
		t.Errorf("round trip = %q", got)
	}
}
