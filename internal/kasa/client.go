// Package kasa implements a client for TP-Link smart plugs (HS110 and
// compatible) speaking the local smart-home protocol over TCP.
//
// Every request opens a fresh connection, writes one encrypted frame and
// reads one encrypted frame back. Deadlines are taken from the context.
package kasa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/jpalmerr/meterpulse/internal/device"
)

// DefaultPort is the TCP port smart plugs listen on.
const DefaultPort = 9999

var (
	realtimeRequest = []byte(`{"emeter":{"get_realtime":{}}}`)
	sysinfoRequest  = []byte(`{"system":{"get_sysinfo":{}}}`)
)

// Client talks to one smart plug.
//
// Client has no per-client timeout; callers bound each call with a context
// deadline, which lets the poller apply one deadline per round.
type Client struct {
	addr   string
	dialer net.Dialer
}

// NewClient creates a [Client] for host. If host carries no port,
// port is used (or [DefaultPort] when port is 0).
func NewClient(host string, port int) *Client {
	if port == 0 {
		port = DefaultPort
	}
	addr := host
	if _, _, err := net.SplitHostPort(host); err != nil {
		addr = net.JoinHostPort(host, strconv.Itoa(port))
	}
	return &Client{addr: addr}
}

// Addr returns the dialled host:port.
func (c *Client) Addr() string {
	return c.addr
}

// Query fetches the realtime energy meter fields.
//
// Numbers are returned as json.Number so that integer readings keep full
// precision. A non-zero err_code in the response is reported as an error.
func (c *Client) Query(ctx context.Context) (device.Reading, error) {
	raw, err := c.exchange(ctx, realtimeRequest)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Emeter struct {
			Realtime device.Reading `json:"get_realtime"`
		} `json:"emeter"`
	}
	if err := decode(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode realtime response: %w", err)
	}

	reading := resp.Emeter.Realtime
	if reading == nil {
		return nil, fmt.Errorf("device %s has no energy meter", c.addr)
	}
	if err := responseError(reading); err != nil {
		return nil, err
	}
	return reading, nil
}

// ResolveAlias returns the alias configured on the plug.
func (c *Client) ResolveAlias(ctx context.Context) (string, error) {
	raw, err := c.exchange(ctx, sysinfoRequest)
	if err != nil {
		return "", err
	}

	var resp struct {
		System struct {
			Sysinfo struct {
				Alias   string      `json:"alias"`
				ErrCode json.Number `json:"err_code"`
				ErrMsg  string      `json:"err_msg"`
			} `json:"get_sysinfo"`
		} `json:"system"`
	}
	if err := decode(raw, &resp); err != nil {
		return "", fmt.Errorf("decode sysinfo response: %w", err)
	}

	info := resp.System.Sysinfo
	if info.ErrCode != "" && info.ErrCode != "0" {
		return "", fmt.Errorf("sysinfo err_code %s: %s", info.ErrCode, info.ErrMsg)
	}
	return info.Alias, nil
}

// exchange sends one request and returns the decrypted response payload.
func (c *Client) exchange(ctx context.Context, req []byte) ([]byte, error) {
	start := time.Now()

	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, c.wrapCtx(ctx, fmt.Errorf("dial: %w", err), start)
	}
	defer func() { _ = conn.Close() }()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, fmt.Errorf("set deadline: %w", err)
		}
	}

	// unblock reads and writes if ctx is cancelled before the deadline
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := WriteFrame(conn, req); err != nil {
		return nil, c.wrapCtx(ctx, err, start)
	}
	resp, err := ReadFrame(conn)
	if err != nil {
		return nil, c.wrapCtx(ctx, err, start)
	}
	return resp, nil
}

// wrapCtx prefers the context error so callers can match context.DeadlineExceeded.
func (c *Client) wrapCtx(ctx context.Context, err error, start time.Time) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s after %s: %w", c.addr, time.Since(start).Round(time.Millisecond), ctxErr)
	}
	return fmt.Errorf("%s: %w", c.addr, err)
}

func decode(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}

// responseError converts a non-zero err_code field into an error.
func responseError(r device.Reading) error {
	code, ok := r["err_code"]
	if !ok {
		return nil
	}
	if n, ok := code.(json.Number); ok && n.String() == "0" {
		return nil
	}
	return fmt.Errorf("device returned err_code %v: %v", code, r["err_msg"])
}

var _ device.Client = (*Client)(nil)
