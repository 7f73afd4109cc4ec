package ipc

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Message types of the i3/sway IPC protocol. Event frames echo the type with
// the high bit set.
const (
	msgRunCommand uint32 = 0
	msgSubscribe  uint32 = 2
	msgGetTree    uint32 = 4

	eventFlag   uint32 = 0x80000000
	eventWindow uint32 = eventFlag | 3
)

// maxPayloadSize bounds a single reply. Anything larger means the stream is
// desynchronized, not a real tree.
const maxPayloadSize = 64 << 20

var magic = [6]byte{'i', '3', '-', 'i', 'p', 'c'}

type header struct {
	Magic  [6]byte
	Length uint32
	Type   uint32
}

// SocketPath resolves the window manager's IPC socket. An explicit path
// wins; otherwise sway's SWAYSOCK is consulted before i3's I3SOCK.
func SocketPath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if path := os.Getenv("SWAYSOCK"); path != "" {
		return path, nil
	}
	if path := os.Getenv("I3SOCK"); path != "" {
		return path, nil
	}
	return "", fmt.Errorf("neither SWAYSOCK nor I3SOCK is set")
}

func writeMessage(w io.Writer, msgType uint32, payload []byte) error {
	hdr := header{Magic: magic, Length: uint32(len(payload)), Type: msgType}
	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := w.Write(payload)
	return err
}

func readMessage(r io.Reader) (uint32, []byte, error) {
	var hdr header
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return 0, nil, err
	}
	if hdr.Magic != magic {
		return 0, nil, fmt.Errorf("bad magic %q in frame header", hdr.Magic[:])
	}
	if hdr.Length > maxPayloadSize {
		return 0, nil, fmt.Errorf("frame payload of %d bytes exceeds limit", hdr.Length)
	}
	if hdr.Length == 0 {
		return hdr.Type, nil, nil
	}
	payload := make([]byte, hdr.Length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, err
	}
	return hdr.Type, payload, nil
}
