package client

import (
	"encoding/json"

	"github.com/adasa/adasa/internal/control"
)

// Start issues the Start command and decodes its StartResult.
func (c *Client) Start(p control.StartParams) (control.StartResult, error) {
	raw, err := c.Call("Start", p)
	if err != nil {
		return control.StartResult{}, err
	}
	var out control.StartResult
	err = json.Unmarshal(raw, &out)
	return out, err
}

// Stop issues the Stop command.
func (c *Client) Stop(p control.StopParams) error {
	_, err := c.Call("Stop", p)
	return err
}

// Restart issues the Restart command.
func (c *Client) Restart(p control.RestartParams) error {
	_, err := c.Call("Restart", p)
	return err
}

// Delete issues the Delete command.
func (c *Client) Delete(target string) error {
	_, err := c.Call("Delete", control.DeleteParams{Target: target})
	return err
}

// List issues the List command and decodes its entries.
func (c *Client) List() ([]control.ListEntry, error) {
	raw, err := c.Call("List", struct{}{})
	if err != nil {
		return nil, err
	}
	var out []control.ListEntry
	err = json.Unmarshal(raw, &out)
	return out, err
}

// Logs issues the Logs command and decodes its result.
func (c *Client) Logs(p control.LogsParams) (control.LogsResult, error) {
	raw, err := c.Call("Logs", p)
	if err != nil {
		return control.LogsResult{}, err
	}
	var out control.LogsResult
	err = json.Unmarshal(raw, &out)
	return out, err
}

// DaemonStatus issues Daemon{Status} and decodes its result.
func (c *Client) DaemonStatus() (control.DaemonStatus, error) {
	raw, err := c.Call("Daemon", control.DaemonParams{Action: "status"})
	if err != nil {
		return control.DaemonStatus{}, err
	}
	var out control.DaemonStatus
	err = json.Unmarshal(raw, &out)
	return out, err
}
