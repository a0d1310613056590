package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"

	"github.com/genricoloni/spotbar/internal/domain"
)

// Send writes a single command datagram to addr. Delivery is not confirmed.
func Send(ctx context.Context, addr string, cmd domain.Command) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return err
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	defer conn.Close()

	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("failed to send %s: %w", cmd, err)
	}
	return nil
}
