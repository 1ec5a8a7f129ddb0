package statsd

import (
	"fmt"
	"net/netip"

	"github.com/pkg/errors"
)

var (
	// ErrGrammarMismatch is returned by ParseLine when a line does not have the
	// name:value|type[@rate] shape.
	ErrGrammarMismatch = errors.New("line does not match statsd grammar")

	// ErrInvalidNumber is returned by ParseLine when the value or the sample
	// rate matched the grammar but is not a parseable float.
	ErrInvalidNumber = errors.New("invalid number in statsd line")

	// ErrInvalidEncoding is wrapped in a PayloadError when a packet is not
	// valid UTF-8.
	ErrInvalidEncoding = errors.New("payload is not valid UTF-8")
)

// PayloadError is returned by a Decoder when a whole packet could not be
// decoded. Line-level problems never produce one.
type PayloadError struct {
	Sender    netip.AddrPort
	Recipient netip.AddrPort
	Err       error
}

func (err *PayloadError) Error() string {
	return fmt.Sprintf("decoding packet from %v to %v: %v", err.Sender, err.Recipient, err.Err)
}

func (err *PayloadError) Unwrap() error {
	return err.Err
}

func (err *PayloadError) Cause() error {
	return err.Err
}

// IsPayloadError returns true if err was caused by an undecodable packet.
func IsPayloadError(err error) bool {
	var payloadErr *PayloadError
	return errors.As(err, &payloadErr)
}

// DropReason classifies why a line produced no metric.
func DropReason(err error) string {
	switch errors.Cause(err) {
	case ErrGrammarMismatch:
		return "grammar"
	case ErrInvalidNumber:
		return "number"
	default:
		return "unknown"
	}
}
