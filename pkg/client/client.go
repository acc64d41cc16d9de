// Package client is a thin Unix-socket client for the adasa control
// protocol (spec section 4.6), used by cmd/adasa and embeddable by other
// Go programs that want to drive a running supervisor without shelling out.
package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/adasa/adasa/internal/control"
)

// Client dials a fresh connection per call, matching the server's
// one-request-per-connection contract.
type Client struct {
	sockPath string
	timeout  time.Duration
	nextID   uint64
}

func New(sockPath string) *Client {
	return &Client{sockPath: sockPath, timeout: 5 * time.Second}
}

// WithTimeout overrides the default 5s round-trip deadline.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.timeout = d
	return c
}

// Call sends {command: {name: payload}} and returns the decoded Ok value
// (as json.RawMessage, for the caller to further unmarshal) or the
// server's Err string as a Go error.
func (c *Client) Call(name string, payload any) (json.RawMessage, error) {
	conn, err := net.DialTimeout("unix", c.sockPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", c.sockPath, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(c.timeout))

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("client: marshal payload: %w", err)
	}
	id := atomic.AddUint64(&c.nextID, 1)
	req := struct {
		ID      uint64                     `json:"id"`
		Command map[string]json.RawMessage `json:"command"`
	}{ID: id, Command: map[string]json.RawMessage{name: raw}}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("client: marshal request: %w", err)
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		return nil, fmt.Errorf("client: write request: %w", err)
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("client: read response: %w", err)
	}
	var resp control.Response
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		return nil, fmt.Errorf("client: decode response: %w", err)
	}
	if resp.Result.Err != "" {
		return nil, fmt.Errorf("%s", resp.Result.Err)
	}
	okData, err := json.Marshal(resp.Result.Ok)
	if err != nil {
		return nil, fmt.Errorf("client: re-marshal result: %w", err)
	}
	return okData, nil
}
