package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	pkgerrors "github.com/pkg/errors"

	"github.com/chargemon/chargemon/pkg/history"
	"github.com/chargemon/chargemon/pkg/types"
)

func (c *Client) GetStatus() (*types.Status, error) {
	ret, err := c.Get("/status")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get daemon status")
	}

	var st types.Status
	if err := json.Unmarshal([]byte(ret), &st); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal daemon status")
	}

	return &st, nil
}

func (c *Client) GetConfig() (*types.CycleConfig, error) {
	ret, err := c.Get("/config")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get config")
	}

	var conf types.CycleConfig
	if err := json.Unmarshal([]byte(ret), &conf); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal config")
	}

	return &conf, nil
}

func (c *Client) SetConfig(conf types.CycleConfig) (string, error) {
	payload, err := json.Marshal(conf)
	if err != nil {
		return "", err
	}
	return c.Put("/config", string(payload))
}

// Cleanup runs one retention pass on the daemon. Exactly one of count
// and olderThanMs should be set; the daemon infers the mode.
func (c *Client) Cleanup(collection string, req types.RetentionRequest) (*types.RetentionResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	path := "/cleanup"
	if collection != "" {
		path += "?collection=" + url.QueryEscape(collection)
	}
	ret, err := c.Post(path, string(payload))
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to run cleanup")
	}

	var res types.RetentionResult
	if err := json.Unmarshal([]byte(ret), &res); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal cleanup result")
	}
	return &res, nil
}

func (c *Client) ClearCycle() (*types.RetentionResult, error) {
	ret, err := c.Post("/cycle/clear", "")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to clear cycle")
	}

	var res types.RetentionResult
	if err := json.Unmarshal([]byte(ret), &res); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal clear result")
	}
	return &res, nil
}

func (c *Client) GetHistory(collection string, limit int) ([]history.Record, error) {
	path := "/history"
	q := url.Values{}
	if collection != "" {
		q.Set("collection", collection)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	ret, err := c.Get(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get history")
	}

	var recs []history.Record
	if err := json.Unmarshal([]byte(ret), &recs); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal history")
	}
	return recs, nil
}

func (c *Client) GetVersion() (string, error) {
	ret, err := c.Get("/version")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get version")
	}

	var v struct {
		Version   string `json:"version"`
		GitCommit string `json:"gitCommit"`
	}
	if err := json.Unmarshal([]byte(ret), &v); err != nil {
		return "", pkgerrors.Wrapf(err, "failed to unmarshal version")
	}
	if v.GitCommit != "" {
		return fmt.Sprintf("%s (%s)", v.Version, v.GitCommit), nil
	}
	return v.Version, nil
}
