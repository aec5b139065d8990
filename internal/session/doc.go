// Package session tracks the live device connections held by this node.
//
// A Session is a node-local handle to one device connection. The Manager
// maps device ids to sessions and is the registry the dispatcher consults
// when it routes a message: a device is online on this node exactly when
// the Manager holds a session for it.
//
// Whenever a session is registered or goes away the Manager publishes a
// DeviceStateEvent on the cluster device state topic, so other nodes can
// follow device presence without polling.
//
// Usage:
//
//	sessions := session.NewManager("node-1")
//	sessions.SetStateTopic(stateTopic)
//	defer sessions.Close()
//
//	sessions.Register(conn)
//	if s, ok := sessions.Lookup("dev-1"); ok {
//	    s.Send(ctx, frame)
//	}
package session
