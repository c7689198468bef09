// Package mqtt connects iobridge to an MQTT broker.
//
// The broker is optional. When enabled it carries two flows:
//   - every poll batch is mirrored as one JSON message per peripheral on
//     <prefix>/readings/<name>
//   - commands published on <prefix>/command/<name>/<command> with a JSON
//     array payload are routed like inbound OSC messages
//
// The client reconnects with backoff, restores subscriptions after a
// reconnect and publishes a retained online/offline status on
// <prefix>/status, with a Last Will for unexpected disconnects.
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := client.Topics()
//	err = client.Subscribe(topics.CommandWildcard(), 0,
//	    func(topic string, payload []byte) error {
//	        addr, _ := topics.CommandAddress(topic)
//	        router.RouteJSON(ctx, addr, payload)
//	        return nil
//	    })
package mqtt
