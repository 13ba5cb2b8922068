package avtp

import "errors"

// Decode-time sentinels. A decode error is always local to the offending
// frame: the frame is dropped and no engine state changes, mirroring the
// teacher's ErrParam/ErrInfoObjAddrFit sentinel style in asdu/identifier.go.
var (
	ErrShortFrame     = errors.New("avtp: frame shorter than fixed portion")
	ErrBadVersion     = errors.New("avtp: unsupported avtp version")
	ErrFieldOverflow  = errors.New("avtp: field value exceeds its bit width")
	ErrLengthMismatch = errors.New("avtp: control_data_length disagrees with framed body size")
	ErrBadSubtype     = errors.New("avtp: unexpected subtype for this decoder")
)
