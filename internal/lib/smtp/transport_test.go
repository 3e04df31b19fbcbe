package smtp

import (
	"context"
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/fitness-courses/internal/config"
	"github.com/magabrotheeeer/fitness-courses/internal/lib/sl"
)

func TestTransport_EnvelopeFrom(t *testing.T) {
	tr := NewTransport(config.SMTP{User: "mailer@fit.io"}, sl.Discard())
	assert.Equal(t, "mailer@fit.io", tr.EnvelopeFrom())
}

func TestTransport_DialCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tr := NewTransport(config.SMTP{Host: "127.0.0.1", Port: "25"}, sl.Discard())
	client, err := tr.Dial(ctx)
	require.Error(t, err)
	assert.Nil(t, client)
}

func TestTransport_DialRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	require.NoError(t, ln.Close())

	tr := NewTransport(config.SMTP{Host: "127.0.0.1", Port: strconv.Itoa(addr.Port)}, sl.Discard())
	client, err := tr.Dial(context.Background())
	require.Error(t, err)
	assert.Nil(t, client)
}

func TestTransport_NoStartTLS(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = conn.Write([]byte("220 localhost ESMTP\r\n"))
		buf := make([]byte, 512)
		for {
			n, err := conn.Read(buf)
			if err != nil || n == 0 {
				return
			}
			line := string(buf[:n])
			switch {
			case len(line) >= 4 && (line[:4] == "EHLO" || line[:4] == "HELO"):
				_, _ = conn.Write([]byte("250-localhost\r\n250 8BITMIME\r\n"))
			case len(line) >= 4 && line[:4] == "QUIT":
				_, _ = conn.Write([]byte("221 bye\r\n"))
				return
			default:
				_, _ = conn.Write([]byte("250 ok\r\n"))
			}
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	tr := NewTransport(config.SMTP{Host: "127.0.0.1", Port: strconv.Itoa(port)}, sl.Discard())
	client, err := tr.Dial(context.Background())
	require.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "STARTTLS")
}
