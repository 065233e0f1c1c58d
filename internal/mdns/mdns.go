// Package mdns announces the AppleMIDI session over mDNS/DNS-SD with
// github.com/brutella/dnssd, the same pure-Go responder the teacher
// uses to announce its KISS-over-TCP service (src/dns_sd.go). Open
// Question 3 (§9) resolves in favor of the responder living inside
// the core rather than a separate process.
package mdns

import (
	"context"
	"fmt"

	"github.com/brutella/dnssd"
)

// ServiceType is the AppleMIDI/RTP-MIDI Bonjour service type.
const ServiceType = "_apple-midi._udp"

// Announcer owns one advertised service and its responder goroutine.
type Announcer struct {
	responder dnssd.Responder
	handle    dnssd.ServiceHandle
	cancel    context.CancelFunc
}

// Announce starts advertising name on port (the AppleMIDI control
// port) and returns once the service is registered with the
// responder; the responder itself runs in the background until
// Shutdown is called.
func Announce(ctx context.Context, name string, port int) (*Announcer, error) {
	cfg := dnssd.Config{
		Name: name,
		Type: ServiceType,
		Port: port,
	}

	svc, err := dnssd.NewService(cfg)
	if err != nil {
		return nil, fmt.Errorf("mdns: create service: %w", err)
	}

	rp, err := dnssd.NewResponder()
	if err != nil {
		return nil, fmt.Errorf("mdns: create responder: %w", err)
	}

	handle, err := rp.Add(svc)
	if err != nil {
		return nil, fmt.Errorf("mdns: add service: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)

	a := &Announcer{responder: rp, handle: handle, cancel: cancel}

	go func() {
		_ = rp.Respond(runCtx)
	}()

	return a, nil
}

// Shutdown withdraws the announcement and stops the responder.
func (a *Announcer) Shutdown() {
	if a.cancel != nil {
		a.cancel()
	}
}
