//go:build integration

package mqtt

import (
	"encoding/json"
	"testing"
	"time"
)

// Integration tests need a broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func TestIntegration_CommandRoundtrip(t *testing.T) {
	client, err := Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	topics := client.Topics()
	got := make(chan string, 1)
	err = client.Subscribe(topics.CommandWildcard(), 1, func(topic string, payload []byte) error {
		addr, _ := topics.CommandAddress(topic)
		got <- addr + " " + string(payload)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !client.HasSubscription(topics.CommandWildcard()) {
		t.Error("subscription not tracked")
	}

	if err := client.Publish(topics.Command("/touch1/threshold"), []byte("[12,6]"), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	select {
	case msg := <-got:
		if msg != "/touch1/threshold [12,6]" {
			t.Errorf("received %q", msg)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("command not received")
	}
}

func TestIntegration_ReadingMirror(t *testing.T) {
	client, err := Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	got := make(chan Reading, 1)
	err = client.Subscribe(client.Topics().AllReadings(), 1, func(_ string, payload []byte) error {
		var r Reading
		if err := json.Unmarshal(payload, &r); err != nil {
			return err
		}
		got <- r
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	sent := Reading{Name: "adc1", Values: []float64{1, 2, 3, 4}, Time: time.Now().UTC()}
	if err := client.PublishReading(sent); err != nil {
		t.Fatalf("PublishReading() error = %v", err)
	}
	select {
	case r := <-got:
		if r.Name != "adc1" || len(r.Values) != 4 || r.Values[3] != 4 {
			t.Errorf("reading = %+v", r)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("reading not received")
	}
	deadline := time.Now().Add(5 * time.Second)
	for client.Stats().Published == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Published counter not incremented")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
