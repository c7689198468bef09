package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is used when the config leaves topic_prefix empty.
const DefaultTopicPrefix = "iobridge"

// Topics builds the topic names under one prefix.
//
//	topics := mqtt.NewTopics("studio/pi1")
//	topics.Reading("adc1")   // "studio/pi1/readings/adc1"
//	topics.Command("touch1/threshold") // "studio/pi1/command/touch1/threshold"
type Topics struct {
	prefix string
}

// NewTopics returns builders rooted at prefix. Surrounding slashes are
// trimmed; an empty prefix becomes DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the root of every topic.
func (t Topics) Prefix() string { return t.prefix }

// Status is the retained online/offline topic, also used for the Last Will.
func (t Topics) Status() string {
	return t.prefix + "/status"
}

// Reading is where a peripheral's values are mirrored each tick.
func (t Topics) Reading(name string) string {
	return fmt.Sprintf("%s/readings/%s", t.prefix, name)
}

// AllReadings matches every reading topic.
func (t Topics) AllReadings() string {
	return t.prefix + "/readings/+"
}

// Command is the topic that carries address as a command.
// A leading slash on address is dropped.
func (t Topics) Command(address string) string {
	return fmt.Sprintf("%s/command/%s", t.prefix, strings.TrimPrefix(address, "/"))
}

// CommandWildcard matches every command topic.
func (t Topics) CommandWildcard() string {
	return t.prefix + "/command/#"
}

// CommandAddress extracts the OSC-style address ("/touch1/threshold") from a
// command topic. ok is false for topics outside the command tree.
func (t Topics) CommandAddress(topic string) (address string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.prefix+"/command/")
	if !found || rest == "" {
		return "", false
	}
	return "/" + rest, true
}
