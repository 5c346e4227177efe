package natsserver

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// EmbeddedServer wraps an in-process NATS server so a single binary can
// carry its own bus.
type EmbeddedServer struct {
	ns  *server.Server
	log *slog.Logger
}

// Options configures the embedded server. Port -1 picks a free port.
type Options struct {
	Host string
	Port int
}

// Start creates the server and waits until it accepts connections.
func Start(opts Options, log *slog.Logger) (*EmbeddedServer, error) {
	if opts.Host == "" {
		opts.Host = "0.0.0.0"
	}

	ns, err := server.NewServer(&server.Options{
		Host:   opts.Host,
		Port:   opts.Port,
		NoSigs: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedded NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded NATS server failed to start within 5 seconds")
	}

	log.Info("embedded NATS server started", slog.String("url", ns.ClientURL()))

	return &EmbeddedServer{
		ns:  ns,
		log: log,
	}, nil
}

// ClientURL is the address local clients should dial. A wildcard bind is
// reached over loopback.
func (e *EmbeddedServer) ClientURL() string {
	addr, ok := e.ns.Addr().(*net.TCPAddr)
	if !ok {
		return e.ns.ClientURL()
	}
	host := "127.0.0.1"
	if ip := addr.IP; ip != nil && !ip.IsUnspecified() {
		host = ip.String()
	}
	return "nats://" + net.JoinHostPort(host, strconv.Itoa(addr.Port))
}

func (e *EmbeddedServer) Shutdown() {
	if e == nil || e.ns == nil {
		return
	}
	e.log.Info("shutting down embedded NATS server")
	e.ns.Shutdown()
	e.ns.WaitForShutdown()
}
