package job

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
)

// ValuesClient reads and writes the small key/value store a challenge
// shares with its Consumer, scoped to one challenge run, mirroring
// values/client.py's ValuesClient.
type ValuesClient struct {
	Client      HTTPDoer
	BaseURL     string
	ChallengeID string
}

func (c *ValuesClient) path() string {
	return "/values/" + c.ChallengeID
}

// Get fetches the value stored under key, or "" if unset.
func (c *ValuesClient) Get(ctx context.Context, key string) (string, error) {
	body, err := json.Marshal(struct {
		Key string `json:"key"`
	}{Key: key})
	if err != nil {
		return "", err
	}

	resp, err := c.Client.Do(ctx, http.MethodPost, c.BaseURL+c.path(), c.path(), body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out struct {
		Value string `json:"value"`
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", err
	}
	return out.Value, nil
}

// Set stores value under key.
func (c *ValuesClient) Set(ctx context.Context, key, value string) error {
	body, err := json.Marshal(struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}{Key: key, Value: value})
	if err != nil {
		return err
	}

	resp, err := c.Client.Do(ctx, http.MethodPost, c.BaseURL+c.path(), c.path(), body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

// Delete removes key.
func (c *ValuesClient) Delete(ctx context.Context, key string) error {
	path := c.path() + "/delete"
	body, err := json.Marshal(struct {
		Key string `json:"key"`
	}{Key: key})
	if err != nil {
		return err
	}

	resp, err := c.Client.Do(ctx, http.MethodPost, c.BaseURL+path, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}
