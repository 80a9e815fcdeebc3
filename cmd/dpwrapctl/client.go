package main

import (
	"encoding/gob"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rtsched/dpwrap/internal/protocol"
)

// Client is a thin gob-encoded connection to dpwrapd's admin socket,
// adapted from cmd/perflock's client.go Client type.
type Client struct {
	c  net.Conn
	gw *gob.Encoder
	gr *gob.Decoder
}

// NewClient dials the admin socket at path.
func NewClient(path string) (*Client, error) {
	c, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("is dpwrapd running? %w", err)
	}
	return &Client{c: c, gw: gob.NewEncoder(c), gr: gob.NewDecoder(c)}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.c.Close() }

func (c *Client) do(action interface{}, response interface{}) error {
	if err := c.gw.Encode(protocol.Request{Action: action}); err != nil {
		return err
	}
	return c.gr.Decode(response)
}

// PutInfo admits or updates a VCPU's (period, slice).
func (c *Client) PutInfo(domain, vcpu int, period, slice time.Duration, sporadic bool) error {
	var resp protocol.ActionPutInfoResponse
	if err := c.do(protocol.ActionPutInfo{
		DomainID: domain, VCPUID: vcpu, Period: period, Slice: slice, Sporadic: sporadic,
	}, &resp); err != nil {
		return err
	}
	if resp.Err != "" {
		return errors.New(resp.Err)
	}
	return nil
}

// GetInfo reads back a VCPU's currently active (period, slice).
func (c *Client) GetInfo(domain, vcpu int) (period, slice time.Duration, err error) {
	var resp protocol.ActionGetInfoResponse
	if err := c.do(protocol.ActionGetInfo{DomainID: domain, VCPUID: vcpu}, &resp); err != nil {
		return 0, 0, err
	}
	if resp.Err != "" {
		return 0, 0, errors.New(resp.Err)
	}
	return resp.Period, resp.Slice, nil
}

// List returns every admitted VCPU.
func (c *Client) List() ([]protocol.VCPUSummary, error) {
	var rows []protocol.VCPUSummary
	if err := c.do(protocol.ActionList{}, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// DebugToggle flips the daemon's collect/print debug-ring state.
func (c *Client) DebugToggle() error {
	var resp struct{}
	return c.do(protocol.ActionDebugToggle{}, &resp)
}

// Dump returns the next chunk of buffered debug-ring entries for pcpu.
func (c *Client) Dump(pcpu int) ([]protocol.DumpEntry, error) {
	var entries []protocol.DumpEntry
	if err := c.do(protocol.ActionDump{PCPU: pcpu}, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
