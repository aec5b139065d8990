// Package cluster provides the cluster-wide publish/subscribe primitive used
// by the dispatch node: the topic bridge.
//
// A Topic[T] exposes one named backplane topic as a typed, in-process stream.
// It holds at most one backplane subscription, made lazily when the first
// local subscriber arrives and released on the first record that arrives
// after the last local subscriber has gone (or on an explicit DetachIdle).
// Records are JSON-decoded into T and fanned out to every local subscriber
// in arrival order.
//
// Topics are obtained from a Manager so that every name maps to exactly one
// bridge per process:
//
//	mgr := cluster.NewManager(backplane)
//	defer mgr.Close()
//
//	states, err := cluster.TopicOf[session.DeviceStateEvent](mgr, "graylogic/cluster/device/state")
//	sub, err := states.Subscribe(ctx)
//	for msg := range sub.C() {
//	    log.Printf("%s: %+v", msg.Topic, msg.Payload)
//	}
//
// # Topic names
//
// Names use MQTT syntax: "/" separates levels, "+" matches one level and a
// trailing "#" matches the rest. A name containing wildcards can be
// subscribed to but not published to.
//
// # Backplanes
//
// MemoryBackplane serves a single process and tests. The mqtt and redis
// infrastructure packages provide the cluster-wide implementations.
package cluster
