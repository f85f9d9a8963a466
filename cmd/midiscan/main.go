// midiscan is a diagnostic tool: list the MIDI ports the engine would see
// and how each one classifies, or monitor a port's decoded traffic.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jorgetrad99/guitar-midi-sub000/engine"
	"github.com/jorgetrad99/guitar-midi-sub000/midi"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "list":
		listPorts()
	case "monitor":
		if len(os.Args) < 3 {
			usage()
			return
		}
		monitor(strings.Join(os.Args[2:], " "))
	default:
		usage()
	}
}

func usage() {
	fmt.Println("midiscan - MIDI port diagnostics")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list            - list ports and their classification")
	fmt.Println("  monitor <port>  - print decoded messages from a port")
}

func listPorts() {
	transport, err := midi.NewRtTransport()
	if err != nil {
		fmt.Fprintf(os.Stderr, "midi backend: %v\n", err)
		os.Exit(1)
	}
	defer transport.Close()

	eps, err := transport.Endpoints()
	if err != nil {
		fmt.Fprintf(os.Stderr, "enumeration: %v\n", err)
		os.Exit(1)
	}

	classifier := engine.NewClassifier(nil, nil)
	for _, ep := range eps {
		dir := ""
		if ep.Input {
			dir += "in"
		}
		if ep.Output {
			if dir != "" {
				dir += "+"
			}
			dir += "out"
		}
		verdict := classifier.Classify(ep.ID).String()
		if classifier.Excluded(ep.ID) {
			verdict = "excluded"
		}
		fmt.Printf("  %-40s %-7s %s\n", ep.ID, dir, verdict)
	}
	if len(eps) == 0 {
		fmt.Println("  no ports found")
	}
}

func monitor(port string) {
	transport, err := midi.NewRtTransport()
	if err != nil {
		fmt.Fprintf(os.Stderr, "midi backend: %v\n", err)
		os.Exit(1)
	}
	defer transport.Close()

	stop, err := transport.OpenInput(port, func(raw []byte) {
		ev, err := midi.Decode(raw)
		if err != nil {
			fmt.Printf("  %x  (%v)\n", raw, err)
			return
		}
		fmt.Printf("  %s\n", ev)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %q: %v\n", port, err)
		os.Exit(1)
	}
	defer stop()

	fmt.Printf("monitoring %q, ^C to stop\n", port)
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
}
