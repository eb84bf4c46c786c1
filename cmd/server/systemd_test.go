package main

import (
	"net"
	"path/filepath"
	"testing"
	"time"
)

func TestNotifySystemd_NoSocket(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	if err := notifySystemd(sdReady); err != nil {
		t.Fatalf("notifySystemd without socket: %v", err)
	}
}

func TestNotifySystemd_SendsState(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "notify.sock")
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: sock, Net: "unixgram"})
	if err != nil {
		t.Skipf("unixgram unavailable: %v", err)
	}
	defer conn.Close()
	t.Setenv("NOTIFY_SOCKET", sock)

	for _, state := range []string{sdReady, sdStopping} {
		if err := notifySystemd(state); err != nil {
			t.Fatalf("notifySystemd(%s): %v", state, err)
		}
		buf := make([]byte, 64)
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, _, err := conn.ReadFromUnix(buf)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if got := string(buf[:n]); got != state {
			t.Fatalf("received %q, want %q", got, state)
		}
	}
}

func TestNotifySystemd_DialError(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", filepath.Join(t.TempDir(), "missing.sock"))
	if err := notifySystemd(sdReady); err == nil {
		t.Fatal("expected an error for a missing socket")
	}
}
