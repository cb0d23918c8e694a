// Command rssiserial runs an RSSI controller over a real serial port,
// for testing against another instance of itself (or a compatible peer)
// wired up over a null-modem cable or a USB-serial adapter pair. Frames
// are length-prefixed on the wire: a big-endian uint16 byte count
// followed by that many header-plus-payload bytes.
package main

import (
	"bufio"
	"encoding/binary"
	"flag"
	"io"
	"log"
	"time"

	"github.com/go-rssi/rssi/rssi"
	"github.com/go-rssi/rssi/stream"
	"go.bug.st/serial"
)

// serialTransport adapts a go.bug.st/serial port to rssi.Transport.
type serialTransport struct {
	port serial.Port
	pool *stream.Pool
}

func (t *serialTransport) ReqFrame(size uint32, _ bool) (*stream.Frame, error) {
	return t.pool.ReqFrame(size), nil
}

func (t *serialTransport) SendFrame(frame *stream.Frame) error {
	buf := frame.Buffer(0)
	wire := buf.Bytes()[:buf.HeadRoom()+buf.Payload()]

	var lenPrefix [2]byte
	binary.BigEndian.PutUint16(lenPrefix[:], uint16(len(wire)))

	if _, err := t.port.Write(lenPrefix[:]); err != nil {
		return err
	}
	_, err := t.port.Write(wire)
	return err
}

// readLoop deframes the length-prefixed stream and delivers each frame to
// the controller until the port returns an error (including on Close).
func readLoop(r *bufio.Reader, c *rssi.Controller) {
	for {
		var lenPrefix [2]byte
		if _, err := io.ReadFull(r, lenPrefix[:]); err != nil {
			return
		}
		n := binary.BigEndian.Uint16(lenPrefix[:])

		raw := make([]byte, n)
		if _, err := io.ReadFull(r, raw); err != nil {
			return
		}

		hdrLen := rssi.PeekHeaderLength(raw)
		if hdrLen <= 0 || hdrLen > len(raw) {
			continue
		}

		buf := stream.NewBuffer(uint32(len(raw)))
		copy(buf.Bytes(), raw)
		if err := buf.AdjustHeader(int32(hdrLen)); err != nil {
			continue
		}
		if err := buf.SetPayload(uint32(len(raw)-hdrLen), true); err != nil {
			continue
		}

		c.TransportRx(stream.NewFrame(buf))
	}
}

func main() {
	portName := flag.String("port", "/dev/ttyUSB0", "serial device to open")
	baud := flag.Int("baud", 115200, "baud rate")
	segSize := flag.Uint("segment-size", 1024, "maximum frame size, header included")
	flag.Parse()

	port, err := serial.Open(*portName, &serial.Mode{BaudRate: *baud})
	if err != nil {
		log.Fatalf("open %s: %v", *portName, err)
	}
	defer port.Close()

	transport := &serialTransport{port: port, pool: stream.NewPool()}
	controller := rssi.Create(uint32(*segSize), transport)
	defer controller.Close()

	go readLoop(bufio.NewReader(port), controller)

	log.Printf("rssi controller started on %s", *portName)
	for {
		frame, ok := controller.ApplicationTx()
		if !ok {
			return
		}
		log.Printf("delivered %d bytes: %x", len(frame.Buffer(0).PayloadBytes()), frame.Buffer(0).PayloadBytes())
		time.Sleep(time.Millisecond)
	}
}
