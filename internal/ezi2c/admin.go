package ezi2c

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"tailscale.com/tsweb"
)

// AttachAdminRoutes attaches bus debugging endpoints to the given HTTP mux
// served at /debug/: the recent-transaction log and hexdumps of the two
// exposed regions.
func (s *Slave[T]) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("bus-transactions", "recently served bus reads", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(s.Transactions()); err != nil {
			http.Error(w, "failed to encode transactions", http.StatusInternalServerError)
		}
	})

	debug.HandleFunc("buffer-diagnostic", "hexdump of the diagnostic region (addr 0x08)", func(w http.ResponseWriter, r *http.Request) {
		s.dumpBuffer(w, DiagnosticAddr)
	})

	debug.HandleFunc("buffer-compact", "hexdump of the compact region (addr 0x09)", func(w http.ResponseWriter, r *http.Request) {
		s.dumpBuffer(w, CompactAddr)
	})
}

func (s *Slave[T]) dumpBuffer(w http.ResponseWriter, addr uint8) {
	buf := s.buf1
	if addr == CompactAddr {
		buf = s.buf2
	}
	if buf == nil {
		http.Error(w, "buffer not attached", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "addr %#x, %d bytes, generation %d\n\n", addr, buf.Size(), buf.Generation())
	io.WriteString(w, hex.Dump(buf.Bytes()))
}
