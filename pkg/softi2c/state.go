package softi2c

// State is the protocol state of one bus.
type State uint8

const (
	StateIdle State = iota
	StateAddress
	StateAddressAck
	StateReadPrepare
	StateRead
	StateReadAck
	StateWritePrepare
	StateWrite
	StateWriteAck
	StateWaitStop
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAddress:
		return "address"
	case StateAddressAck:
		return "address_ack"
	case StateReadPrepare:
		return "read_prepare"
	case StateRead:
		return "read"
	case StateReadAck:
		return "read_ack"
	case StateWritePrepare:
		return "write_prepare"
	case StateWrite:
		return "write"
	case StateWriteAck:
		return "write_ack"
	case StateWaitStop:
		return "wait_stop"
	default:
		return "unknown"
	}
}
