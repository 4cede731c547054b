package oscquery

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T) *Server {
	t.Helper()
	config := DefaultConfig()
	config.OSCPort = 9000
	config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewServer(config)
	require.NoError(t, s.Start())
	t.Cleanup(s.Stop)
	require.NotZero(t, s.Port())
	return s
}

func TestStartIdempotent(t *testing.T) {
	s := startTestServer(t)
	port := s.Port()
	require.NoError(t, s.Start())
	assert.Equal(t, port, s.Port())
}

func TestTreeEndpoint(t *testing.T) {
	s := startTestServer(t)

	// No method registered yet: no tree to serve.
	resp, err := http.Get("http://" + net.JoinHostPort("127.0.0.1", strconv.Itoa(int(s.Port()))) + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	require.NoError(t, s.AddMethod(Method{
		Address: "/avatar/parameters/Mood",
		Access:  AccessReadWrite,
		Type:    TypeFloat,
	}))
	require.NoError(t, s.SetMethodValue("/avatar/parameters/Mood", float32(0.75)))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client := NewClient(0)

	root, err := client.FetchTree(ctx, "127.0.0.1", s.Port())
	require.NoError(t, err)
	mood := lookupNode(root, "/avatar/parameters/Mood")
	require.NotNil(t, mood)
	assert.Equal(t, AccessReadWrite, mood.Access)
	assert.Equal(t, "f", mood.Type)
	require.Len(t, mood.Value, 1)
	assert.InDelta(t, 0.75, mood.Value[0], 1e-6)

	// Subtree queries resolve too.
	change, err := client.FetchTree(ctx, "127.0.0.1", s.Port())
	require.NoError(t, err)
	require.NotNil(t, lookupNode(change, "/avatar/change"))

	s.RemoveMethod("/avatar/parameters/Mood")
	root, err = client.FetchTree(ctx, "127.0.0.1", s.Port())
	require.NoError(t, err)
	assert.Nil(t, lookupNode(root, "/avatar/parameters/Mood"))
}

func TestTreeSubPathNotFound(t *testing.T) {
	s := startTestServer(t)
	require.NoError(t, s.AddMethod(Method{Address: "/chatbox/typing", Access: AccessWrite, Type: TypeBool}))

	resp, err := http.Get("http://" + net.JoinHostPort("127.0.0.1", strconv.Itoa(int(s.Port()))) + "/no/such/node")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHostInfoEndpoint(t *testing.T) {
	s := startTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client := NewClient(0)

	// Name unset is a caller bug surfaced as a server error.
	_, err := client.FetchHostInfo(ctx, "127.0.0.1", s.Port())
	require.Error(t, err)

	s.SetName("MAOW-1A2B3C")
	info, err := client.FetchHostInfo(ctx, "127.0.0.1", s.Port())
	require.NoError(t, err)
	assert.Equal(t, "MAOW-1A2B3C", info.Name)
	assert.Equal(t, "127.0.0.1", info.OSCIP)
	assert.Equal(t, uint16(9000), info.OSCPort)
	assert.Equal(t, "UDP", info.OSCTransport)
	assert.True(t, info.Extensions["ACCESS"])
	assert.True(t, info.Extensions["VALUE"])
}

func TestAddMethodValidation(t *testing.T) {
	s := NewServer(DefaultConfig())
	assert.ErrorIs(t, s.AddMethod(Method{Address: "no-slash"}), ErrBadAddress)
	assert.ErrorIs(t, s.AddMethod(Method{
		Address: "/chatbox/typing",
		Access:  AccessWrite,
		Type:    TypeBool,
		Value:   "true",
	}), ErrValueType)
	assert.ErrorIs(t, s.SetMethodValue("/missing", 1), ErrMethodNotFound)
}

type capturingAdvertiser struct {
	calls []struct {
		instance    string
		serviceType string
		port        uint16
		address     net.IP
	}
}

func (c *capturingAdvertiser) Advertise(instance, serviceType string, port uint16, address net.IP) {
	c.calls = append(c.calls, struct {
		instance    string
		serviceType string
		port        uint16
		address     net.IP
	}{instance, serviceType, port, address})
}

func TestAdvertiseAs(t *testing.T) {
	adv := &capturingAdvertiser{}

	stopped := NewServer(DefaultConfig())
	_, err := stopped.AdvertiseAs(adv, net.IPv4(127, 0, 0, 1))
	assert.ErrorIs(t, err, ErrNotRunning)

	s := startTestServer(t)
	name, err := s.AdvertiseAs(adv, net.IPv4(127, 0, 0, 1))
	require.NoError(t, err)
	assert.Regexp(t, `^MAOW-[0-9A-F]{6}$`, name)
	assert.Equal(t, name, s.Name())

	require.Len(t, adv.calls, 2)
	assert.Equal(t, "_osc._udp.local.", adv.calls[0].serviceType)
	assert.Equal(t, uint16(9000), adv.calls[0].port)
	assert.Equal(t, "_oscjson._tcp.local.", adv.calls[1].serviceType)
	assert.Equal(t, s.Port(), adv.calls[1].port)
}
