package service

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oscbridge-protocol/oscbridge-go/pkg/mdns"
	"github.com/oscbridge-protocol/oscbridge-go/pkg/osc"
	"github.com/oscbridge-protocol/oscbridge-go/pkg/oscquery"
)

func testConfig() Config {
	config := DefaultConfig()
	config.DisableDiscovery = true
	config.ReceivePort = 0 // ephemeral, tests must not fight over 9001
	config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return config
}

func startManager(t *testing.T, config Config) *Manager {
	t.Helper()
	mgr, err := NewManager(config)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, mgr.StartAll(ctx))
	t.Cleanup(mgr.StopAll)
	return mgr
}

func TestStartAllIdempotent(t *testing.T) {
	mgr := startManager(t, testConfig())

	ctx := context.Background()
	assert.ErrorIs(t, mgr.StartAll(ctx), ErrAlreadyRunning)

	mgr.StopAll()
	mgr.StopAll()
	require.NoError(t, mgr.StartAll(ctx))
}

func TestStatusReporting(t *testing.T) {
	mgr := startManager(t, testConfig())

	st := mgr.Status()
	assert.NotEmpty(t, st.SessionID)
	assert.True(t, st.Directory.Running)
	assert.True(t, st.Transport.Running)
	assert.False(t, st.Discovery.Running)
	assert.Equal(t, "unavailable", st.Discovery.Detail)

	assert.NotZero(t, st.ReceivePort)
	assert.NotZero(t, st.DirectoryPort)
	assert.Empty(t, st.DiscoveredPeers)

	peer := mgr.Peer()
	assert.Equal(t, "127.0.0.1", peer.Host)
	assert.Equal(t, uint16(9000), peer.SendPort)
	assert.NotZero(t, peer.ReceivePort)
	assert.False(t, peer.Discovered)
}

func TestStatusDiscoveredPeers(t *testing.T) {
	mgr, err := NewManager(testConfig())
	require.NoError(t, err)

	mgr.recordPeerNames([]mdns.DiscoveredService{
		{ServiceName: "MAOW-AA11BB", Address: net.IPv4(127, 0, 0, 1), Port: 8080},
		{ServiceName: "MAOW-CC22DD", Address: net.IPv4(127, 0, 0, 1), Port: 8081},
	})
	assert.Equal(t, []string{"MAOW-AA11BB", "MAOW-CC22DD"}, mgr.Status().DiscoveredPeers)

	mgr.recordPeerNames(nil)
	assert.Empty(t, mgr.Status().DiscoveredPeers)
}

func TestApplyProbe(t *testing.T) {
	defaults := PeerConnectionInfo{Host: "127.0.0.1", SendPort: 9000, ReceivePort: 9001}
	candidate := mdns.DiscoveredService{
		ServiceName: "MAOW-AB12CD",
		Address:     net.IPv4(10, 0, 0, 5),
		Port:        8080,
	}

	peer := applyProbe(defaults, candidate, &oscquery.HostInfo{Name: "MAOW-AB12CD", OSCPort: 9100})
	assert.Equal(t, "10.0.0.5", peer.Host)
	assert.Equal(t, uint16(9100), peer.SendPort)
	assert.Equal(t, uint16(9001), peer.ReceivePort)
	assert.Equal(t, "MAOW-AB12CD", peer.InstanceName)
	assert.True(t, peer.Discovered)

	// A reply without an OSC_PORT keeps the conventional send port.
	peer = applyProbe(defaults, candidate, &oscquery.HostInfo{Name: "MAOW-AB12CD"})
	assert.Equal(t, "10.0.0.5", peer.Host)
	assert.Equal(t, uint16(9000), peer.SendPort)
	assert.True(t, peer.Discovered)

	// A failed probe keeps the port pair but still uses the discovered host.
	peer = applyProbe(defaults, candidate, nil)
	assert.Equal(t, "10.0.0.5", peer.Host)
	assert.Equal(t, uint16(9000), peer.SendPort)
	assert.Equal(t, "MAOW-AB12CD", peer.InstanceName)
	assert.False(t, peer.Discovered)
}

// TestProbeOmittedPort fetches HOST_INFO from a server whose reply has no
// OSC_PORT key and checks the resolved peer never ends up on port 0.
func TestProbeOmittedPort(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"NAME":"MAOW-AB12CD","OSC_IP":"127.0.0.1","OSC_TRANSPORT":"UDP"}`))
	})}
	go srv.Serve(listener)
	defer srv.Close()

	port := uint16(listener.Addr().(*net.TCPAddr).Port)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	info, err := oscquery.NewClient(2*time.Second).FetchHostInfo(ctx, "127.0.0.1", port)
	require.NoError(t, err)
	assert.Zero(t, info.OSCPort)

	defaults := PeerConnectionInfo{Host: "127.0.0.1", SendPort: 9000, ReceivePort: 9001}
	candidate := mdns.DiscoveredService{
		ServiceName: "MAOW-AB12CD",
		Address:     net.IPv4(127, 0, 0, 1),
		Port:        port,
	}
	peer := applyProbe(defaults, candidate, info)
	require.NotZero(t, peer.SendPort)
	assert.Equal(t, uint16(9000), peer.SendPort)
	assert.True(t, peer.Discovered)
}

func TestSendBeforeStart(t *testing.T) {
	mgr, err := NewManager(testConfig())
	require.NoError(t, err)
	assert.ErrorIs(t, mgr.SendAvatarParameterBool("Hat", true), ErrNotRunning)
}

// TestSendDatagramShape captures the raw datagram of a parameter send at a
// fake peer socket.
func TestSendDatagramShape(t *testing.T) {
	peerSock, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer peerSock.Close()

	config := testConfig()
	config.SendPort = uint16(peerSock.LocalAddr().(*net.UDPAddr).Port)
	mgr := startManager(t, config)

	require.NoError(t, mgr.SendAvatarParameterBool("Hat", true))

	buf := make([]byte, 1024)
	require.NoError(t, peerSock.SetReadDeadline(time.Now().Add(3*time.Second)))
	n, _, err := peerSock.ReadFromUDP(buf)
	require.NoError(t, err)

	msg, err := osc.DecodeMessage(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, "/avatar/parameters/Hat", msg.Address)
	assert.Equal(t, []any{true}, msg.Args)

	require.NoError(t, mgr.SendChatbox("hi", true, false))
	n, _, err = peerSock.ReadFromUDP(buf)
	require.NoError(t, err)
	msg, err = osc.DecodeMessage(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, "/chatbox/input", msg.Address)
	assert.Equal(t, []any{"hi", true, false}, msg.Args)
}

// TestReceiveStream drives a message into the manager's receive port and
// reads it off the stream.
func TestReceiveStream(t *testing.T) {
	mgr := startManager(t, testConfig())
	port := mgr.Peer().ReceivePort

	data, err := osc.NewMessage("/avatar/parameters/Mood", float32(0.25)).Encode()
	require.NoError(t, err)
	conn, err := net.Dial("udp4", net.JoinHostPort("127.0.0.1", strconv.Itoa(int(port))))
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write(data)
	require.NoError(t, err)

	select {
	case msg := <-mgr.TakeReceiveStream():
		assert.Equal(t, "/avatar/parameters/Mood", msg.Address)
		assert.Equal(t, []any{float32(0.25)}, msg.Args)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for receive stream")
	}
}

// TestAvatarChangeRouting verifies an inbound avatar-change message
// activates the avatar and registers its parameters in the directory.
func TestAvatarChangeRouting(t *testing.T) {
	dir := t.TempDir()
	configJSON := `{
	  "id": "avtr_route",
	  "name": "Routed",
	  "parameters": [
	    {"name": "Mood", "input": {"address": "/avatar/parameters/Mood", "type": "Float"}}
	  ]
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "routed.json"), []byte(configJSON), 0o644))

	config := testConfig()
	config.AvatarConfigDir = dir
	mgr := startManager(t, config)
	port := mgr.Peer().ReceivePort

	data, err := osc.NewMessage("/avatar/change", "avtr_route").Encode()
	require.NoError(t, err)
	conn, err := net.Dial("udp4", net.JoinHostPort("127.0.0.1", strconv.Itoa(int(port))))
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write(data)
	require.NoError(t, err)

	select {
	case msg := <-mgr.TakeReceiveStream():
		assert.Equal(t, "/avatar/change", msg.Address)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for avatar change")
	}

	// The directory now carries the activated avatar's parameter.
	client := oscquery.NewClient(0)
	require.Eventually(t, func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		root, err := client.FetchTree(ctx, "127.0.0.1", mgr.Directory().Port())
		if err != nil {
			return false
		}
		return findNode(root, []string{"avatar", "parameters", "Mood"}) != nil
	}, 3*time.Second, 50*time.Millisecond)
}

func findNode(root *oscquery.Node, path []string) *oscquery.Node {
	node := root
	for _, seg := range path {
		child, ok := node.Contents[seg]
		if !ok {
			return nil
		}
		node = child
	}
	return node
}
