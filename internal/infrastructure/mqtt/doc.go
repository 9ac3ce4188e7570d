// Package mqtt wraps paho.mqtt.golang for the bridge's northbound side.
//
// Everything the bridge says to the world goes through one Client:
// device state, command acks, gateway status, and health, published on
// the topics built by Topics. Commands arrive the other way on a
// wildcard subscription.
//
//	Consumers <-> MQTT Broker <-> EnOcean Bridge <-> Transceiver
//
// The wrapper stays deliberately small. Paho already reconnects with
// backoff; on top of that the Client re-subscribes its recorded topics
// after every reconnect, maintains the retained availability message on
// enocean/system/status (with an LWT covering crashes), and recovers
// panics in message handlers so a malformed command cannot kill the
// router goroutine.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllCommands(), 1,
//	    func(topic string, payload []byte) error { ... })
//
// Thread Safety: Client is safe for concurrent use.
package mqtt
