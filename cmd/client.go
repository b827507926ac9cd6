package cmd

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/fragpit/envoy-auth/internal/api"
)

const apiTimeout = 30 * time.Second

var httpClient = &http.Client{Timeout: apiTimeout}

func adminAuthorization() string {
	encodedAPIKey := base64.StdEncoding.EncodeToString([]byte(cfg.AdminAPIKey))
	return fmt.Sprintf("Basic %s", encodedAPIKey)
}

func bearerAuthorization() string {
	return fmt.Sprintf("Bearer %s", cfg.EnvoyToken)
}

// callAPI sends a request to the server and decodes the data of a
// successful response envelope into out, when out is not nil.
func callAPI(
	method string,
	endpoint string,
	query url.Values,
	authorization string,
	body any,
	out any,
) error {
	baseURL, err := url.Parse(cfg.APIURL)
	if err != nil {
		return fmt.Errorf("error parsing url: %w", err)
	}

	baseURL.Path = path.Join(baseURL.Path, endpoint)
	baseURL.RawQuery = query.Encode()
	fullURL := baseURL.String()

	var reqBody io.Reader = http.NoBody
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error marshaling json: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, fullURL, reqBody)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Authorization", authorization)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error sending request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNoContent {
		return nil
	}

	var resp api.Response
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}

	if !resp.Success {
		if resp.Error == nil {
			return fmt.Errorf("request failed: status %d", res.StatusCode)
		}
		return fmt.Errorf(
			"request failed: %s (code: %d)",
			resp.Error.Message,
			resp.Error.Code,
		)
	}

	if out == nil {
		return nil
	}

	data, err := json.Marshal(resp.Data)
	if err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}

	return nil
}
