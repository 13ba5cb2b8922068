package acmp

import "fmt"

// Status is the ACMP 5-bit status code (spec.md §6.3), packed into the
// shared header valid_time/status field.
type Status uint8

const (
	StatusSuccess                 Status = 0x00
	StatusListenerUnknownID       Status = 0x01
	StatusTalkerUnknownID         Status = 0x02
	StatusTalkerDestMacFail       Status = 0x03
	StatusTalkerNoStreamIndex     Status = 0x04
	StatusTalkerNoBandwidth       Status = 0x05
	StatusTalkerExclusive         Status = 0x06
	StatusListenerTalkerTimeout   Status = 0x07
	StatusListenerExclusive       Status = 0x08
	StatusStateUnavailable        Status = 0x09
	StatusNotConnected            Status = 0x0A
	StatusNoSuchConnection        Status = 0x0B
	StatusCouldNotSendMessage     Status = 0x0C
	StatusTalkerMisbehaving       Status = 0x0D
	StatusListenerMisbehaving     Status = 0x0E
	StatusControllerNotAuthorized Status = 0x0F
	StatusIncompatibleRequest     Status = 0x10
	StatusNotSupported            Status = 0x1F

	// StatusTimedOut is synthetic (spec.md §4.3.1, §4.3.4, §7): never sent on
	// the wire, only surfaced to a local controller application when the
	// inflight table exhausts its retries.
	StatusTimedOut Status = 0xFF
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusListenerUnknownID:
		return "LISTENER_UNKNOWN_ID"
	case StatusTalkerUnknownID:
		return "TALKER_UNKNOWN_ID"
	case StatusTalkerDestMacFail:
		return "TALKER_DEST_MAC_FAIL"
	case StatusTalkerNoStreamIndex:
		return "TALKER_NO_STREAM_INDEX"
	case StatusTalkerNoBandwidth:
		return "TALKER_NO_BANDWIDTH"
	case StatusTalkerExclusive:
		return "TALKER_EXCLUSIVE"
	case StatusListenerTalkerTimeout:
		return "LISTENER_TALKER_TIMEOUT"
	case StatusListenerExclusive:
		return "LISTENER_EXCLUSIVE"
	case StatusStateUnavailable:
		return "STATE_UNAVAILABLE"
	case StatusNotConnected:
		return "NOT_CONNECTED"
	case StatusNoSuchConnection:
		return "NO_SUCH_CONNECTION"
	case StatusCouldNotSendMessage:
		return "COULD_NOT_SEND_MESSAGE"
	case StatusTalkerMisbehaving:
		return "TALKER_MISBEHAVING"
	case StatusListenerMisbehaving:
		return "LISTENER_MISBEHAVING"
	case StatusControllerNotAuthorized:
		return "CONTROLLER_NOT_AUTHORIZED"
	case StatusIncompatibleRequest:
		return "INCOMPATIBLE_REQUEST"
	case StatusNotSupported:
		return "NOT_SUPPORTED"
	case StatusTimedOut:
		return "TIMED_OUT"
	default:
		return fmt.Sprintf("Status(0x%02X)", uint8(s))
	}
}
