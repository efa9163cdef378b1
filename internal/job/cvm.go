package job

import (
	"context"
	"encoding/json"
	"net/http"
)

// CVMClient notifies the confidential VM sidecar that a job is still being
// worked on, mirroring cvm/client.py's CVMClient.heartbeat.
type CVMClient struct {
	Client      HTTPDoer
	BaseURL     string
	ChallengeID string
}

// Heartbeat posts a liveness signal for ChallengeID to /cvm/heartbeat.
func (c *CVMClient) Heartbeat(ctx context.Context) error {
	const path = "/cvm/heartbeat"
	body, err := json.Marshal(struct {
		ChallengeID string `json:"challenge_id"`
	}{ChallengeID: c.ChallengeID})
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
