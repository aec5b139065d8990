package metrics

import (
	"github.com/nerrad567/gray-logic-dispatch/internal/cluster"
	"github.com/nerrad567/gray-logic-dispatch/internal/dispatch"
	"github.com/nerrad567/gray-logic-dispatch/internal/message"
)

// OutcomeSink receives every dispatch outcome in addition to the counters.
// influxdb.Client implements it.
type OutcomeSink interface {
	WriteDispatchOutcome(serverID, deviceID, outcome, code string)
}

// Recorder feeds the package collectors.
type Recorder struct {
	serverID string
	sink     OutcomeSink
}

var (
	_ dispatch.OutcomeRecorder = (*Recorder)(nil)
	_ cluster.Observer         = (*Recorder)(nil)
)

// NewRecorder creates a Recorder for the node serverID. sink may be nil.
func NewRecorder(serverID string, sink OutcomeSink) *Recorder {
	return &Recorder{serverID: serverID, sink: sink}
}

// RecordOutcome implements dispatch.OutcomeRecorder.
func (r *Recorder) RecordOutcome(deviceID string, outcome dispatch.Outcome, code message.ErrorCode) {
	DispatchOutcomes.WithLabelValues(string(outcome), string(code)).Inc()
	if r.sink != nil {
		r.sink.WriteDispatchOutcome(r.serverID, deviceID, string(outcome), string(code))
	}
}

// TopicAttached implements cluster.Observer.
func (r *Recorder) TopicAttached(string) {
	TopicsAttached.Inc()
	TopicEvents.WithLabelValues("attach").Inc()
}

// TopicDetached implements cluster.Observer.
func (r *Recorder) TopicDetached(string) {
	TopicsAttached.Dec()
	TopicEvents.WithLabelValues("detach").Inc()
}

// SessionOpened counts a device session taken by this node.
func (r *Recorder) SessionOpened() { ActiveSessions.Inc() }

// SessionClosed counts a device session released by this node.
func (r *Recorder) SessionClosed() { ActiveSessions.Dec() }

// FrameSent counts one frame written to a device.
func (r *Recorder) FrameSent() { GatewayFrames.WithLabelValues("out").Inc() }

// FrameReceived counts one frame read from a device.
func (r *Recorder) FrameReceived() { GatewayFrames.WithLabelValues("in").Inc() }

// DecodeFailed counts one inbound frame the codec rejected.
func (r *Recorder) DecodeFailed() { GatewayDecodeErrors.Inc() }
