package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// apiClient calls the REST API with fiber's HTTP agent.
type apiClient struct {
	baseURL string
	apiKey  string
	token   string
	timeout time.Duration
}

type apiError struct {
	Status int
	Kind   string `json:"kind"`
	Msg    string `json:"error"`
}

func (e *apiError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Kind, e.Msg)
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Msg)
}

func (c *apiClient) get(path string, out interface{}) error {
	return c.do(fiber.Get(c.url(path)), out)
}

func (c *apiClient) post(path string, body, out interface{}) error {
	a := fiber.Post(c.url(path))
	if body != nil {
		a.JSON(body)
	}
	return c.do(a, out)
}

func (c *apiClient) url(path string) string {
	return strings.TrimRight(c.baseURL, "/") + "/api/v1" + path
}

func (c *apiClient) do(a *fiber.Agent, out interface{}) error {
	if c.apiKey != "" {
		a.Set("X-API-Key", c.apiKey)
	} else if c.token != "" {
		a.Set(fiber.HeaderAuthorization, "Bearer "+c.token)
	}
	if c.timeout > 0 {
		a.Timeout(c.timeout)
	}

	status, body, errs := a.Bytes()
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if status >= fiber.StatusBadRequest {
		apiErr := &apiError{Status: status}
		if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Msg == "" {
			apiErr.Msg = strings.TrimSpace(string(body))
		}
		return apiErr
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}
