// Package protocol defines how device messages are turned into frames for a
// specific device protocol and transport, and back.
//
// A Support describes one device protocol. For each transport it supports it
// hands out a Codec. The dispatcher drives encoding through EncodeContext, a
// deliberately small surface: the codec can send an already-encoded frame
// through the device's session, disconnect that session, read the request
// and read the device operator, and nothing else.
//
// Supports are looked up by id in a Registry. Devices name their protocol in
// the device catalogue (see package device).
package protocol
