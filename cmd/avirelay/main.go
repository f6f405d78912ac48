// Command avirelay is a development aid: it demuxes an AVI file and
// forwards each frame's raw, still-compressed payload over a WebRTC
// DataChannel as it's read, so a browser-based tool can inspect frame
// timing and sizes without a decoder in the loop. It never decodes a
// frame; it only relays the bytes ReadFrame already produced.
//
// Signaling is manual copy/paste SDP, the simplest possible path for a
// one-off debug session: start the relay, paste the printed offer into a
// peer, paste its answer back on stdin.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"

	"github.com/brightpath/avidemux/avi"
	"github.com/brightpath/avidemux/internal/config"
)

// frameEnvelope is the DataChannel wire format: a small JSON header
// (stream, frame index, byte size) immediately followed, as a second
// DataChannel message, by the raw frame payload.
type frameEnvelope struct {
	Session    string `json:"session"`
	Kind       string `json:"kind"` // "video" or "audio"
	FrameIndex uint32 `json:"frame_index"`
	Size       uint32 `json:"size"`
}

func main() {
	input := flag.String("i", "", "input AVI file (required)")
	verbose := flag.Bool("v", false, "enable verbose trace logging")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "usage: avirelay -i input.avi [-v]")
		os.Exit(2)
	}
	avi.Verbose = *verbose

	sessionID := uuid.New().String()
	log.Printf("avirelay: session %s", sessionID)

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}},
	})
	if err != nil {
		log.Fatalf("avirelay: NewPeerConnection: %v", err)
	}
	defer pc.Close()

	dc, err := pc.CreateDataChannel("frames", nil)
	if err != nil {
		log.Fatalf("avirelay: CreateDataChannel: %v", err)
	}

	ready := make(chan struct{})
	dc.OnOpen(func() { close(ready) })
	dc.OnClose(func() { log.Printf("avirelay: data channel closed") })

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		log.Fatalf("avirelay: CreateOffer: %v", err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		log.Fatalf("avirelay: SetLocalDescription: %v", err)
	}
	<-gatherComplete

	printSDP("OFFER", *pc.LocalDescription())
	answer := readSDP("Paste the remote ANSWER (JSON on one line), then press enter: ")
	if err := pc.SetRemoteDescription(answer); err != nil {
		log.Fatalf("avirelay: SetRemoteDescription: %v", err)
	}

	<-ready
	log.Printf("avirelay: data channel open, relaying frames from %s", *input)

	if err := relay(sessionID, *input, dc); err != nil {
		log.Fatalf("avirelay: %v", err)
	}
}

func relay(sessionID, path string, dc *webrtc.DataChannel) error {
	cfg := config.Load()
	d, err := avi.Open(path, cfg)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer d.Close()

	info, err := d.ParseInfo()
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}

	videoBuf := make([]byte, maxOf(info.Video.MaxFrameSize, 1<<20))
	audioBuf := make([]byte, maxOf(info.Audio.MaxFrameSize, 1<<16))

	for {
		frame, err := d.ReadFrame(videoBuf, audioBuf)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}

		env := frameEnvelope{Session: sessionID, FrameIndex: frame.FrameIndex, Size: frame.Size}
		var payload []byte
		switch frame.Kind {
		case avi.FrameVideo:
			env.Kind = "video"
			payload = videoBuf[:frame.Size]
		case avi.FrameAudio:
			env.Kind = "audio"
			payload = audioBuf[:frame.Size]
		}

		header, err := json.Marshal(env)
		if err != nil {
			return fmt.Errorf("marshal envelope: %w", err)
		}
		if err := dc.SendText(string(header)); err != nil {
			return fmt.Errorf("send envelope: %w", err)
		}
		if err := dc.Send(payload); err != nil {
			return fmt.Errorf("send payload: %w", err)
		}
	}
}

func maxOf(v uint32, floor uint32) uint32 {
	if v == 0 || v < floor {
		return floor
	}
	return v
}

func printSDP(label string, desc webrtc.SessionDescription) {
	b, err := json.Marshal(desc)
	if err != nil {
		log.Fatalf("avirelay: marshal %s: %v", label, err)
	}
	fmt.Printf("--- %s ---\n%s\n--- END %s ---\n", label, b, label)
}

func readSDP(prompt string) webrtc.SessionDescription {
	fmt.Print(prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		log.Fatalf("avirelay: reading SDP: %v", err)
	}
	var desc webrtc.SessionDescription
	if err := json.Unmarshal([]byte(line), &desc); err != nil {
		log.Fatalf("avirelay: decoding SDP JSON: %v", err)
	}
	return desc
}
