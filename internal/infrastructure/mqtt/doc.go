// Package mqtt publishes the live station feed to an MQTT broker.
//
// It wraps paho.mqtt.golang with connection management, auto-reconnect,
// publish timeouts and a Last Will that marks the station offline on its
// retained status topic when the process dies without a clean disconnect.
//
// Topics are rooted at <prefix>/<station>; see Topics.
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT, cfg.Station.Name)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.PublishJSON(client.Topics().Latest(), reading, true)
package mqtt
