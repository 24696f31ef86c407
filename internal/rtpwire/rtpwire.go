// Package rtpwire decodes the packet header / sequence-number framing
// that the stream core treats as an opaque collaborator: it hands the
// stream a packet type, a sequence number, and the payload bytes that
// follow, using pion's RTP packet parser rather than a hand-rolled
// header layout.
package rtpwire

import (
	"errors"

	"github.com/pion/rtp"
)

// ErrMalformed wraps any failure to unmarshal an incoming datagram as
// an RTP packet.
var ErrMalformed = errors.New("rtpwire: malformed packet")

// Header is the subset of an RTP packet's header the stream core needs:
// the sequence number for SequenceTracker, the payload type for
// StreamProperties dispatch, and the payload itself.
type Header struct {
	SequenceNumber uint16
	PayloadType    byte
	Timestamp      uint32
	Payload        []byte
}

// Parse unmarshals raw into an RTP packet and returns the fields the
// stream core consumes. Returns ErrMalformed, wrapping the underlying
// parse error, on truncated or invalid input.
func Parse(raw []byte) (Header, error) {
	var pkt rtp.Packet
	if err := pkt.Unmarshal(raw); err != nil {
		return Header{}, errors.Join(ErrMalformed, err)
	}
	return Header{
		SequenceNumber: pkt.SequenceNumber,
		PayloadType:    pkt.PayloadType,
		Timestamp:      pkt.Timestamp,
		Payload:        pkt.Payload,
	}, nil
}
