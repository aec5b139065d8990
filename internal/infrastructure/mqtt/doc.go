// Package mqtt provides MQTT connectivity for the dispatch node.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support, restored on reconnect
//   - Last Will and Testament (LWT) for node offline detection
//   - A cluster backplane adapter (Backplane) used by the topic bridge
//
// # Architecture
//
// When backplane.type is "mqtt", every node in the cluster shares one broker.
// Send streams, reply topics and cluster events are plain MQTT topics below
// backplane.topic_prefix.
//
//	node A ↔ MQTT Broker ↔ node B
//
// # Listener counts
//
// MQTT does not report how many subscribers received a publish. The Backplane
// reports 1 for every publish the broker acknowledged.
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, mqtt.Topics{Prefix: cfg.Backplane.TopicPrefix})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	bp := mqtt.NewBackplane(client, byte(cfg.MQTT.QoS))
//	closer, err := bp.SubscribePattern(ctx, "graylogic/cluster/node-001/send",
//	    func(channel string, payload []byte) {
//	        log.Printf("Received: %s = %s", channel, payload)
//	    })
package mqtt
