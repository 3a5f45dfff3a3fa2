// Command capsense-read acts as a bus master: it reads the hub's compact
// publication buffer over the serial bus and prints the decoded per-sensor
// triples, once or continuously in CSV form.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"go.bug.st/serial"

	"github.com/banshee-data/capsense.hub/internal/ezi2c"
	"github.com/banshee-data/capsense.hub/internal/reading"
)

var (
	port     = flag.String("port", "/dev/ttyUSB0", "Serial port the hub's bus is on")
	baud     = flag.Int("baud", 115200, "Baud rate")
	sensors  = flag.Int("sensors", 3, "Sensor count N exposed by the hub")
	interval = flag.Duration("interval", 0, "Poll interval; 0 reads once and exits")
	csv      = flag.Bool("csv", false, "Emit CSV rows (timestamp then raw,diff,baseline per sensor)")
)

func main() {
	flag.Parse()

	if *sensors < 1 {
		log.Fatalf("sensor count %d, need at least 1", *sensors)
	}

	p, err := serial.Open(*port, &serial.Mode{BaudRate: *baud})
	if err != nil {
		log.Fatalf("failed to open %s: %v", *port, err)
	}
	defer p.Close()

	if *csv {
		printCSVHeader(os.Stdout, *sensors)
	}

	for {
		rec, err := readCompact(p, *sensors)
		if err != nil {
			log.Fatalf("bus read failed: %v", err)
		}
		if *csv {
			printCSVRow(os.Stdout, rec)
		} else {
			printReadable(os.Stdout, rec)
		}
		if *interval <= 0 {
			return
		}
		time.Sleep(*interval)
	}
}

// readCompact performs one whole-buffer read of the compact region and
// decodes it.
func readCompact(rw io.ReadWriter, sensors int) (reading.Record, error) {
	req := ezi2c.AppendRequest(nil, ezi2c.ReadRequest{
		Addr:  ezi2c.CompactAddr,
		Count: uint16(reading.BytesPerSensor * sensors),
	})
	if _, err := rw.Write(req); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	frame, err := readResponseFrame(rw)
	if err != nil {
		return nil, err
	}
	status, payload, err := ezi2c.ParseResponse(frame)
	if err != nil {
		return nil, err
	}
	if status != ezi2c.StatusOK {
		return nil, fmt.Errorf("hub answered: %s", status)
	}
	return reading.DecodeRecord(payload)
}

// readResponseFrame assembles one response frame from the stream: a fixed
// header carrying the payload length, then the payload and checksum.
func readResponseFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("read response header: %w", err)
	}
	n := int(binary.LittleEndian.Uint16(header[2:4]))
	rest := make([]byte, n+1)
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, fmt.Errorf("read response payload: %w", err)
	}
	return append(header, rest...), nil
}

func printReadable(w io.Writer, rec reading.Record) {
	for i, r := range rec {
		fmt.Fprintf(w, "sensor %d: raw=%d diff=%d baseline=%d\n", i, r.Raw, r.Diff, r.Baseline)
	}
}

func printCSVHeader(w io.Writer, sensors int) {
	fmt.Fprint(w, "timestamp")
	for i := 0; i < sensors; i++ {
		fmt.Fprintf(w, ",raw_%d,diff_%d,baseline_%d", i, i, i)
	}
	fmt.Fprintln(w)
}

func printCSVRow(w io.Writer, rec reading.Record) {
	fmt.Fprint(w, time.Now().Format(time.RFC3339Nano))
	for _, r := range rec {
		fmt.Fprintf(w, ",%d,%d,%d", r.Raw, r.Diff, r.Baseline)
	}
	fmt.Fprintln(w)
}
