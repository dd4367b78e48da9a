package mcp23017

import "fmt"

type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrorInvalidPin              = Error("Invalid pin")
	ErrorUnknownRegister         = Error("Unknown register")
	ErrorInvalidRegister         = Error("Register is not writable with verification")
	ErrorWriteVerificationFailed = Error("Write verification failed")
	ErrorInversionRange          = Error("Value can not be inverted")
	ErrorInvalidOptions          = Error("Invalid options")
)

// WriteVerificationError is returned when the read back value still differs from the written
// one after all attempts. The register content is unknown afterwards.
type WriteVerificationError struct {
	Address   uint8
	Register  uint8
	Attempted uint8
	Observed  uint8
	Attempts  int
}

func (e *WriteVerificationError) Error() string {
	return fmt.Sprintf("tried %d times, can't write 0x%02X at register 0x%02X (last read 0x%02X), maybe the board at 0x%02X is broken",
		e.Attempts, e.Attempted, e.Register, e.Observed, e.Address)
}

func (e *WriteVerificationError) Is(target error) bool {
	return target == ErrorWriteVerificationFailed
}
