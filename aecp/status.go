package aecp

import "fmt"

// Status is the AEM response status code (spec.md §4.4.1, §4.4.2, §7). The
// numeric assignment follows the IEEE 1722.1 AEM_STATUS table; spec.md names
// the codes it needs without enumerating the full table (§6.4 note: "full
// table in protocol specification"), so the remaining values are filled in
// from the standard to keep the wire byte meaningful end-to-end.
type Status uint8

const (
	StatusSuccess                Status = 0x00
	StatusNotImplemented         Status = 0x01
	StatusNoSuchDescriptor       Status = 0x02
	StatusEntityLocked           Status = 0x03
	StatusEntityAcquired         Status = 0x04
	StatusNotAuthenticated       Status = 0x05
	StatusAuthenticationDisabled Status = 0x06
	StatusBadArguments           Status = 0x07
	StatusNoResources            Status = 0x08
	StatusInProgress             Status = 0x09
	StatusEntityMisbehaving      Status = 0x0A
	StatusNotSupported           Status = 0x0B
	StatusStreamIsRunning        Status = 0x0C

	// StatusTimedOut is synthetic (spec.md §4.4.3, §4.4.5, §7): never sent on
	// the wire, only surfaced locally when the inflight table exhausts its
	// retries.
	StatusTimedOut Status = 0xFF
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusNotImplemented:
		return "NOT_IMPLEMENTED"
	case StatusNoSuchDescriptor:
		return "NO_SUCH_DESCRIPTOR"
	case StatusEntityLocked:
		return "ENTITY_LOCKED"
	case StatusEntityAcquired:
		return "ENTITY_ACQUIRED"
	case StatusNotAuthenticated:
		return "NOT_AUTHENTICATED"
	case StatusAuthenticationDisabled:
		return "AUTHENTICATION_DISABLED"
	case StatusBadArguments:
		return "BAD_ARGUMENTS"
	case StatusNoResources:
		return "NO_RESOURCES"
	case StatusInProgress:
		return "IN_PROGRESS"
	case StatusEntityMisbehaving:
		return "ENTITY_MISBEHAVING"
	case StatusNotSupported:
		return "NOT_SUPPORTED"
	case StatusStreamIsRunning:
		return "STREAM_IS_RUNNING"
	case StatusTimedOut:
		return "TIMED_OUT"
	default:
		return fmt.Sprintf("Status(0x%02X)", uint8(s))
	}
}

// CommandType is the 15-bit AEM command_type enum (spec.md §6.4).
type CommandType uint16

const (
	CmdAcquireEntity                     CommandType = 0x0000
	CmdLockEntity                        CommandType = 0x0001
	CmdEntityAvailable                   CommandType = 0x0002
	CmdControllerAvailable               CommandType = 0x0003
	CmdReadDescriptor                    CommandType = 0x0004
	CmdWriteDescriptor                   CommandType = 0x0005
	CmdSetConfiguration                  CommandType = 0x0006
	CmdGetConfiguration                  CommandType = 0x0007
	CmdSetStreamFormat                   CommandType = 0x0008
	CmdGetStreamFormat                   CommandType = 0x0009
	CmdSetStreamInfo                     CommandType = 0x000E
	CmdGetStreamInfo                     CommandType = 0x000F
	CmdStartStreaming                    CommandType = 0x0022
	CmdStopStreaming                     CommandType = 0x0023
	CmdRegisterUnsolicitedNotification   CommandType = 0x0024
	CmdDeregisterUnsolicitedNotification CommandType = 0x0025
	CmdGetAvbInfo                        CommandType = 0x0027
	CmdGetAudioMap                       CommandType = 0x002B
	CmdAddAudioMappings                  CommandType = 0x002C
	CmdRemoveAudioMappings               CommandType = 0x002D
	CmdGetDynamicInfo                    CommandType = 0x004B
)

func (c CommandType) String() string {
	switch c {
	case CmdAcquireEntity:
		return "ACQUIRE_ENTITY"
	case CmdLockEntity:
		return "LOCK_ENTITY"
	case CmdEntityAvailable:
		return "ENTITY_AVAILABLE"
	case CmdControllerAvailable:
		return "CONTROLLER_AVAILABLE"
	case CmdReadDescriptor:
		return "READ_DESCRIPTOR"
	case CmdWriteDescriptor:
		return "WRITE_DESCRIPTOR"
	case CmdSetConfiguration:
		return "SET_CONFIGURATION"
	case CmdGetConfiguration:
		return "GET_CONFIGURATION"
	case CmdSetStreamFormat:
		return "SET_STREAM_FORMAT"
	case CmdGetStreamFormat:
		return "GET_STREAM_FORMAT"
	case CmdSetStreamInfo:
		return "SET_STREAM_INFO"
	case CmdGetStreamInfo:
		return "GET_STREAM_INFO"
	case CmdStartStreaming:
		return "START_STREAMING"
	case CmdStopStreaming:
		return "STOP_STREAMING"
	case CmdRegisterUnsolicitedNotification:
		return "REGISTER_UNSOLICITED_NOTIFICATION"
	case CmdDeregisterUnsolicitedNotification:
		return "DEREGISTER_UNSOLICITED_NOTIFICATION"
	case CmdGetAvbInfo:
		return "GET_AVB_INFO"
	case CmdGetAudioMap:
		return "GET_AUDIO_MAP"
	case CmdAddAudioMappings:
		return "ADD_AUDIO_MAPPINGS"
	case CmdRemoveAudioMappings:
		return "REMOVE_AUDIO_MAPPINGS"
	case CmdGetDynamicInfo:
		return "GET_DYNAMIC_INFO"
	default:
		return fmt.Sprintf("CommandType(0x%04X)", uint16(c))
	}
}
