// Package social holds the Instagram and Facebook Graph API clients used for
// OAuth token exchange and direct photo publishing.
package social

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const graphVersion = "v18.0"

var httpClient = &http.Client{Timeout: 15 * time.Second}

// graphError is the error envelope both Graph APIs return.
type graphError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// readJSON decodes a Graph API response into v, surfacing the platform's own
// error message on non-2xx status when one is present.
func readJSON(resp *http.Response, v interface{}) error {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var ge graphError
		if json.Unmarshal(body, &ge) == nil && ge.Error.Message != "" {
			return fmt.Errorf("platform API error (%d): %s", resp.StatusCode, ge.Error.Message)
		}
		return fmt.Errorf("platform API error (%d): %s", resp.StatusCode, string(body))
	}

	if v == nil {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
