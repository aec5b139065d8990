// Package messaging carries device requests, replies and state queries
// between cluster nodes over cluster topics.
//
// ClusterHandler is the node side: it feeds the dispatcher with the
// messages addressed to the node and delivers replies. Client is the caller
// side: it sends a message to the node holding a device and waits for the
// reply, and asks nodes which devices they hold.
//
// Topic layout (prefix defaults to graylogic/cluster):
//
//	{prefix}/node/{server}/send            device messages for one node
//	{prefix}/node/{server}/state/request   bulk state queries for one node
//	{prefix}/state/reply/{request}         answers to one state query
//	{prefix}/reply/{device}/{message}      replies to one device message
//	{prefix}/device/state                  online/offline events
//	{prefix}/device/{device}/event         events reported by devices
//
// Every payload except state queries is a message.Envelope, the JSON
// encoding that carries the concrete message type.
package messaging
