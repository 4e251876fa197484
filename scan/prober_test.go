package scan

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/phayes/freeport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandProberArgs(t *testing.T) {
	var got [][]string
	runner := CommandRunnerFunc(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		assert.Equal(t, "ping", name)
		got = append(got, args)
		return nil, errors.New("exit status 1")
	})

	p := NewCommandProber(2*time.Second, runner)

	p.goos = "linux"
	p.Probe(context.Background(), "10.0.0.1")

	p.goos = "windows"
	p.Probe(context.Background(), "10.0.0.1")

	require.Len(t, got, 2)
	assert.Equal(t, []string{"-c", "1", "-W", "2", "10.0.0.1"}, got[0])
	assert.Equal(t, []string{"10.0.0.1", "-n", "1", "-w", "2000"}, got[1])
}

func TestCommandProberRoundsTimeoutUp(t *testing.T) {
	p := NewCommandProber(1500*time.Millisecond, CommandRunnerFunc(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, nil
	}))
	p.goos = "linux"
	assert.Equal(t, []string{"-c", "1", "-W", "2", "10.0.0.1"}, p.args("10.0.0.1"))

	p.timeout = 100 * time.Millisecond
	assert.Equal(t, []string{"-c", "1", "-W", "1", "10.0.0.1"}, p.args("10.0.0.1"))
}

func TestCommandProberBSDTimeoutInMilliseconds(t *testing.T) {
	p := NewCommandProber(2*time.Second, nil)

	for _, goos := range []string{"darwin", "freebsd"} {
		p.goos = goos
		assert.Equal(t, []string{"-c", "1", "-W", "2000", "10.0.0.1"}, p.args("10.0.0.1"), goos)
	}
}

func TestConnectProberClosedPort(t *testing.T) {
	port, err := freeport.GetFreePort()
	require.NoError(t, err)

	p := NewConnectProber(time.Second, port)

	start := time.Now()
	p.Probe(context.Background(), "127.0.0.1")
	assert.True(t, time.Since(start) < time.Second)
}

func TestConnectProberOpenPort(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	accepted := make(chan struct{})
	go func() {
		conn, err := listener.Accept()
		if err == nil {
			conn.Close()
		}
		close(accepted)
	}()

	p := NewConnectProber(time.Second, listener.Addr().(*net.TCPAddr).Port)
	p.Probe(context.Background(), "127.0.0.1")

	select {
	case <-accepted:
	case <-time.After(time.Second):
		t.Fatal("probe never connected")
	}
}

func TestNewProber(t *testing.T) {
	for _, kind := range []string{"icmp", "command", "connect", ""} {
		p, err := NewProber(kind, time.Second)
		require.NoError(t, err)
		assert.NotNil(t, p)
	}

	_, err := NewProber("syn", time.Second)
	assert.Error(t, err)
}
