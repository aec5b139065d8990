// Package dispatch routes outbound device messages to the sessions held by
// this node.
//
// The Handler binds to two request streams for its server id: messages
// addressed to this node, and bulk device state queries. For each device
// message it:
//
//  1. builds a reply skeleton carrying the request's message and device id
//  2. looks up the device's session (no session: CLIENT_OFFLINE reply)
//  3. for a disconnect, unregisters the session and replies success
//  4. otherwise resolves protocol and codec, encodes and sends
//  5. replies REQUEST_HANDLING when the request is async and the session
//     accepted the frames; a failure at any step becomes a failed reply
//
// Messages are handled concurrently and one message's failure never stops
// the stream. Replies are delivered without blocking dispatch.
//
// Broadcast messages are recognised but not implemented: they are logged
// and dropped.
package dispatch
