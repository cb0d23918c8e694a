// Command rssidemo runs a loopback RSSI connection over an in-memory
// stub transport, sends a handful of messages from one end to the
// other, and prints what arrives.
package main

import (
	"encoding/binary"
	"fmt"
	"log"
	"time"

	"github.com/go-rssi/rssi/rssi"
	"github.com/go-rssi/rssi/rssi/stub"
)

func main() {
	left, right := stub.New(), stub.New()

	sender := rssi.Create(1500, left)
	defer sender.Close()
	receiver := rssi.Create(1500, right)
	defer receiver.Close()

	left.Attach(receiver.TransportRx)
	right.Attach(sender.TransportRx)

	waitOpen(sender)
	waitOpen(receiver)
	fmt.Println("connection established")

	go func() {
		for i := 0; ; i++ {
			frame, ok := receiver.ApplicationTx()
			if !ok {
				return
			}
			payload := frame.Buffer(0).PayloadBytes()
			if len(payload) == 8 {
				fmt.Printf("received message %d: %d\n", i, binary.BigEndian.Uint64(payload))
			}
		}
	}()

	for i := uint64(0); i < 10; i++ {
		frame, err := sender.ReqFrame(8, false)
		if err != nil {
			log.Fatalf("ReqFrame: %v", err)
		}
		buf := frame.Buffer(0)
		binary.BigEndian.PutUint64(buf.Bytes()[buf.HeadRoom():], i)
		if err := buf.AdjustPayload(8); err != nil {
			log.Fatalf("AdjustPayload: %v", err)
		}
		if err := sender.ApplicationRx(frame); err != nil {
			log.Fatalf("ApplicationRx: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	time.Sleep(200 * time.Millisecond)
	fmt.Printf("sender stats: %+v\n", sender.Stats())
	fmt.Printf("receiver stats: %+v\n", receiver.Stats())
}

func waitOpen(c *rssi.Controller) {
	for !c.Open() {
		time.Sleep(time.Millisecond)
	}
}
