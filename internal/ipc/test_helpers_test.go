package ipc

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	original, had := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("setenv %s: %v", key, err)
	}
	t.Cleanup(func() {
		if !had {
			os.Unsetenv(key)
			return
		}
		os.Setenv(key, original)
	})
}

// startFakeWM listens on a unix socket in a temp dir and runs script against
// every accepted connection. Scripts run on their own goroutine, so they
// must not call into testing.T beyond logging.
func startFakeWM(t *testing.T, script func(conn net.Conn)) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wm.sock")
	listener, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { listener.Close() })
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				script(c)
			}(conn)
		}
	}()
	return path
}

func recvEvent(t *testing.T, events <-chan Event) (Event, bool) {
	t.Helper()
	select {
	case ev, ok := <-events:
		return ev, ok
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
		return Event{}, false
	}
}
