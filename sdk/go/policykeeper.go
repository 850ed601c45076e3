package sdk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Client is a minimal API client for a policykeeper server
type Client struct {
	BaseURL  string
	Username string
	Password string
	HTTP     *http.Client
}

func New(baseURL, username, password string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &Client{BaseURL: baseURL, Username: username, Password: password, HTTP: http.DefaultClient}
}

func (c *Client) do(method, path string, body interface{}, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequest(method, c.BaseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.Username, c.Password)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Policies lists policies with the server-side filter parameters
// (q, insurer, status, end_from, end_to).
func (c *Client) Policies(params map[string]string) (map[string]interface{}, error) {
	u, _ := url.Parse("/v1/policies")
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	var out map[string]interface{}
	if err := c.do("GET", u.String(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Customers searches customers; pass an empty query for all
func (c *Client) Customers(query string) (map[string]interface{}, error) {
	path := "/v1/customers"
	if query != "" {
		path += "?q=" + url.QueryEscape(query)
	}
	var out map[string]interface{}
	if err := c.do("GET", path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateCustomer creates a customer record
func (c *Client) CreateCustomer(customer map[string]interface{}) (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := c.do("POST", "/v1/customers", customer, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreatePolicy creates a policy record
func (c *Client) CreatePolicy(policy map[string]interface{}) (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := c.do("POST", "/v1/policies", policy, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RunNotifications triggers an expiry notification scan
func (c *Client) RunNotifications(forced bool) (int, error) {
	path := "/v1/notifications/run"
	if forced {
		path += "?forced=true"
	}
	var out struct {
		Sent int `json:"sent"`
	}
	if err := c.do("POST", path, nil, &out); err != nil {
		return 0, err
	}
	return out.Sent, nil
}

// Health reports server health without credentials
func (c *Client) Health() error {
	resp, err := c.HTTP.Get(c.BaseURL + "/v1/health")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health: %s", resp.Status)
	}
	return nil
}
