package rendezvous

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/absmach/fedtree/job"
	"github.com/absmach/fedtree/pkg/channel"
	pkgerrors "github.com/absmach/fedtree/pkg/errors"
)

const (
	ServerAddressVar = "server_ip"

	loopback = "127.0.0.1"
	// routeProbe is never contacted; dialing UDP only selects the outbound interface.
	routeProbe = "10.255.255.255:1"
)

// LocalAddress returns the address other hosts most likely reach this host on,
// falling back to loopback.
func LocalAddress() string {
	conn, err := net.Dial("udp", routeProbe)
	if err != nil {
		return loopback
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP == nil || addr.IP.IsUnspecified() {
		return loopback
	}

	return addr.IP.String()
}

type Exchange struct {
	channel channel.Channel
	// Timeout bounds Await. Zero waits until the context is done.
	timeout time.Duration
}

func NewExchange(ch channel.Channel, timeout time.Duration) *Exchange {
	return &Exchange{channel: ch, timeout: timeout}
}

// Publish sends the server address to every client individually.
func (e *Exchange) Publish(ctx context.Context, addr string, clients []job.Participant) error {
	if addr == "" {
		return fmt.Errorf("server address is empty: %w", pkgerrors.ErrMissingValue)
	}
	if len(clients) == 0 {
		return fmt.Errorf("no client to publish the server address to: %w", pkgerrors.ErrTopology)
	}

	return e.channel.Publish(ctx, ServerAddressVar, []byte(addr), clients)
}

// Await blocks until the server address arrives from server.
func (e *Exchange) Await(ctx context.Context, server job.Participant) (string, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	value, err := e.channel.Receive(ctx, ServerAddressVar, server)
	if err != nil {
		return "", err
	}
	if len(value) == 0 {
		return "", fmt.Errorf("received empty server address: %w", pkgerrors.ErrChannel)
	}

	return string(value), nil
}
