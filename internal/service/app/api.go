package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

type (
	registerPayload struct {
		Username       string   `json:"username"`
		EncryptedCodes []string `json:"encryptedCodes"`
	}

	usernamePayload struct {
		Username string `json:"username"`
	}

	retrieveResult struct {
		EncryptedCode  string `json:"encryptedCode"`
		CodesRemaining int    `json:"codesRemaining"`
		TotalCodes     int    `json:"totalCodes"`
	}

	apiError struct {
		Error string `json:"error"`
	}
)

func (c *App) register(username string, envelopes []string) error {
	return c.postJSON("/api/register", registerPayload{
		Username:       username,
		EncryptedCodes: envelopes,
	}, nil)
}

func (c *App) retrieve(username string) (*retrieveResult, error) {
	var result retrieveResult
	if err := c.postJSON("/api/retrieve", usernamePayload{Username: username}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *App) reset(username string) error {
	return c.postJSON("/api/reset", usernamePayload{Username: username}, nil)
}

func (c *App) postJSON(path string, payload, out any) error {
	u := url.URL{
		Scheme: "http",
		Host:   c.host,
		Path:   path,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	resp, err := http.Post(u.String(), "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}

	defer resp.Body.Close()
	defer io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("server returned %s", resp.Status)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
