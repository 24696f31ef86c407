// Command pktfeed emits sequenced RTP-framed test traffic over UDP,
// with configurable loss and reorder, so the streamrecv demo can be
// exercised without a live remote peer — the sending-side counterpart
// to the mock client pattern used elsewhere in the example corpus.
package main

import (
	"flag"
	"log"
	"math/rand"
	"net"
	"time"

	"github.com/pion/rtp"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:4040", "destination address")
	frameMs := flag.Int("frame-ms", 20, "frame duration in milliseconds")
	sampleRate := flag.Int("rate", 48000, "sample rate in Hz")
	lossPct := flag.Float64("loss", 0, "fraction of packets to drop, 0..1")
	reorderPct := flag.Float64("reorder", 0, "fraction of packets to delay by one slot, 0..1")
	count := flag.Int("count", 0, "number of packets to send, 0 = unlimited")
	flag.Parse()

	conn, err := net.Dial("udp", *addr)
	if err != nil {
		log.Fatalf("[pktfeed] dial %s: %v", *addr, err)
	}
	defer conn.Close()

	frameSamples := *sampleRate * *frameMs / 1000
	interval := time.Duration(*frameMs) * time.Millisecond

	log.Printf("[pktfeed] sending to %s, %dms frames, loss=%.2f reorder=%.2f", *addr, *frameMs, *lossPct, *reorderPct)

	var held []byte
	var seq uint16
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := 0; *count == 0 || i < *count; i++ {
		<-ticker.C

		raw, err := buildPacket(seq, frameSamples)
		seq++
		if err != nil {
			log.Printf("[pktfeed] build packet: %v", err)
			continue
		}

		if rand.Float64() < *lossPct {
			continue
		}

		if held != nil {
			if _, err := conn.Write(raw); err != nil {
				log.Printf("[pktfeed] write: %v", err)
				return
			}
			if _, err := conn.Write(held); err != nil {
				log.Printf("[pktfeed] write: %v", err)
				return
			}
			held = nil
			continue
		}

		if rand.Float64() < *reorderPct {
			held = raw
			continue
		}

		if _, err := conn.Write(raw); err != nil {
			log.Printf("[pktfeed] write: %v", err)
			return
		}
	}

	if held != nil {
		conn.Write(held)
	}
}

// buildPacket encodes frameSamples raw little-endian int16 silence
// samples into an RTP packet at the given sequence number. Real audio
// content is not needed to exercise the jitter buffer's sequencing and
// depth logic, only the header framing.
func buildPacket(seq uint16, frameSamples int) ([]byte, error) {
	payload := make([]byte, frameSamples*2)
	pkt := rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    111,
			SequenceNumber: seq,
			Timestamp:      uint32(seq) * uint32(frameSamples),
		},
		Payload: payload,
	}
	return pkt.Marshal()
}
