// Package appium implements core.Device against an Appium server using the
// W3C WebDriver protocol.
package appium

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// W3C WebDriver element identifier key (standard constant)
const w3cElementKey = "element-6066-11e4-a52e-4f735466cecf"

// Client handles HTTP communication with Appium server.
type Client struct {
	serverURL string
	sessionID string
	client    *http.Client
	platform  string // ios, android
	screenW   int
	screenH   int
}

// NewClient creates a new Appium client. A zero timeout keeps a long default
// suitable for app install and screenshots.
func NewClient(serverURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		serverURL: strings.TrimSuffix(serverURL, "/"),
		client:    &http.Client{Timeout: timeout},
	}
}

// Connect creates a new session with the given capabilities.
func (c *Client) Connect(ctx context.Context, capabilities map[string]interface{}) error {
	body := map[string]interface{}{
		"capabilities": map[string]interface{}{
			"alwaysMatch": capabilities,
		},
	}

	resp, err := c.post(ctx, "/session", body)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	value, ok := resp["value"].(map[string]interface{})
	if !ok {
		return fmt.Errorf("invalid session response")
	}

	c.sessionID, _ = value["sessionId"].(string)
	if c.sessionID == "" {
		return fmt.Errorf("no session ID in response")
	}

	if caps, ok := value["capabilities"].(map[string]interface{}); ok {
		if platform, ok := caps["platformName"].(string); ok {
			c.platform = strings.ToLower(platform)
		}
	}

	c.fetchScreenSize(ctx)

	// Hierarchy reads should not wait for the app to go idle; feed apps with
	// autoplaying video never do.
	settings := map[string]interface{}{"waitForIdleTimeout": 0}
	if c.platform != "ios" {
		settings["waitForSelectorTimeout"] = 0
	}
	_ = c.SetSettings(ctx, settings)
	return nil
}

// Disconnect closes the session.
func (c *Client) Disconnect(ctx context.Context) error {
	if c.sessionID == "" {
		return nil
	}
	_, err := c.delete(ctx, c.sessionPath())
	c.sessionID = ""
	return err
}

// SessionID returns the active session id, empty when disconnected.
func (c *Client) SessionID() string {
	return c.sessionID
}

// Platform returns the platform (ios/android).
func (c *Client) Platform() string {
	return c.platform
}

// ScreenSize returns the cached screen dimensions.
func (c *Client) ScreenSize() (int, int) {
	return c.screenW, c.screenH
}

func (c *Client) fetchScreenSize(ctx context.Context) {
	resp, err := c.get(ctx, c.sessionPath()+"/window/rect")
	if err != nil {
		return
	}
	if value, ok := resp["value"].(map[string]interface{}); ok {
		if w, ok := value["width"].(float64); ok {
			c.screenW = int(w)
		}
		if h, ok := value["height"].(float64); ok {
			c.screenH = int(h)
		}
	}
}

// Element Operations

// FindElement finds a single element.
func (c *Client) FindElement(ctx context.Context, strategy, value string) (string, error) {
	resp, err := c.post(ctx, c.sessionPath()+"/element", map[string]interface{}{
		"using": strategy,
		"value": value,
	})
	if err != nil {
		return "", err
	}
	elemValue, ok := resp["value"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("element not found")
	}
	id := extractElementID(elemValue)
	if id == "" {
		return "", fmt.Errorf("element not found")
	}
	return id, nil
}

// SendElementKeys types text into an element.
func (c *Client) SendElementKeys(ctx context.Context, elementID, text string) error {
	_, err := c.post(ctx, c.elementPath(elementID)+"/value", map[string]interface{}{
		"text":  text,
		"value": strings.Split(text, ""),
	})
	return err
}

// Touch/Gesture Operations (W3C Actions)

func (c *Client) performTouchAction(ctx context.Context, actions []map[string]interface{}) error {
	payload := []map[string]interface{}{
		{
			"type":       "pointer",
			"id":         "finger1",
			"parameters": map[string]interface{}{"pointerType": "touch"},
			"actions":    actions,
		},
	}
	_, err := c.post(ctx, c.sessionPath()+"/actions", map[string]interface{}{"actions": payload})
	return err
}

// Tap performs a tap at coordinates using W3C touch actions.
func (c *Client) Tap(ctx context.Context, x, y int) error {
	return c.performTouchAction(ctx, []map[string]interface{}{
		{"type": "pointerMove", "duration": 0, "x": x, "y": y, "origin": "viewport"},
		{"type": "pointerDown", "button": 0},
		{"type": "pause", "duration": 50},
		{"type": "pointerUp", "button": 0},
	})
}

// Swipe performs a swipe gesture.
func (c *Client) Swipe(ctx context.Context, startX, startY, endX, endY, durationMs int) error {
	return c.performTouchAction(ctx, []map[string]interface{}{
		{"type": "pointerMove", "duration": 0, "x": startX, "y": startY, "origin": "viewport"},
		{"type": "pointerDown", "button": 0},
		{"type": "pointerMove", "duration": durationMs, "x": endX, "y": endY, "origin": "viewport"},
		{"type": "pointerUp", "button": 0},
	})
}

// SendKeys sends text to the active element.
func (c *Client) SendKeys(ctx context.Context, text string) error {
	var keyActions []map[string]interface{}
	for _, ch := range text {
		keyActions = append(keyActions,
			map[string]interface{}{"type": "keyDown", "value": string(ch)},
			map[string]interface{}{"type": "keyUp", "value": string(ch)},
		)
	}
	_, err := c.post(ctx, c.sessionPath()+"/actions", map[string]interface{}{
		"actions": []map[string]interface{}{
			{"type": "key", "id": "keyboard", "actions": keyActions},
		},
	})
	if err != nil {
		// Fallback: Appium element value endpoint
		_, err = c.post(ctx, c.sessionPath()+"/appium/element/active/value", map[string]interface{}{
			"text": text,
		})
	}
	return err
}

// Back presses the back button.
func (c *Client) Back(ctx context.Context) error {
	if c.platform == "ios" {
		_, err := c.post(ctx, c.sessionPath()+"/back", nil)
		return err
	}
	return c.PressKeyCode(ctx, 4) // Android KEYCODE_BACK
}

// PressKeyCode presses a key by keycode (Android).
func (c *Client) PressKeyCode(ctx context.Context, keycode int) error {
	_, err := c.post(ctx, c.sessionPath()+"/appium/device/press_keycode", map[string]interface{}{
		"keycode": keycode,
	})
	return err
}

// LaunchApp activates an app.
func (c *Client) LaunchApp(ctx context.Context, appID string) error {
	_, err := c.post(ctx, c.sessionPath()+"/appium/device/activate_app", c.appBody(appID))
	return err
}

// TerminateApp terminates an app.
func (c *Client) TerminateApp(ctx context.Context, appID string) error {
	_, err := c.post(ctx, c.sessionPath()+"/appium/device/terminate_app", c.appBody(appID))
	return err
}

func (c *Client) appBody(appID string) map[string]interface{} {
	if c.platform == "ios" {
		return map[string]interface{}{"bundleId": appID}
	}
	return map[string]interface{}{"appId": appID}
}

// Screenshot returns a screenshot as PNG bytes.
func (c *Client) Screenshot(ctx context.Context) ([]byte, error) {
	resp, err := c.get(ctx, c.sessionPath()+"/screenshot")
	if err != nil {
		return nil, err
	}
	encoded, ok := resp["value"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid screenshot response")
	}
	return base64.StdEncoding.DecodeString(encoded)
}

// Source returns the page source XML.
func (c *Client) Source(ctx context.Context) (string, error) {
	resp, err := c.get(ctx, c.sessionPath()+"/source")
	if err != nil {
		return "", err
	}
	source, _ := resp["value"].(string)
	return source, nil
}

// SetSettings updates Appium driver settings.
func (c *Client) SetSettings(ctx context.Context, settings map[string]interface{}) error {
	_, err := c.post(ctx, c.sessionPath()+"/appium/settings", map[string]interface{}{
		"settings": settings,
	})
	return err
}

// HTTP Helpers

func (c *Client) sessionPath() string {
	return "/session/" + c.sessionID
}

func (c *Client) elementPath(elementID string) string {
	return c.sessionPath() + "/element/" + elementID
}

func (c *Client) get(ctx context.Context, path string) (map[string]interface{}, error) {
	return c.request(ctx, http.MethodGet, path, nil)
}

func (c *Client) post(ctx context.Context, path string, body interface{}) (map[string]interface{}, error) {
	return c.request(ctx, http.MethodPost, path, body)
}

func (c *Client) delete(ctx context.Context, path string) (map[string]interface{}, error) {
	return c.request(ctx, http.MethodDelete, path, nil)
}

// WebDriverError is an error reported by the server in a well-formed response.
type WebDriverError struct {
	Status  int
	Code    string
	Message string
}

func (e *WebDriverError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// request performs one WebDriver call. Network failures and unparseable
// responses are returned as *transportError; server-side errors as *WebDriverError.
func (c *Client) request(ctx context.Context, method, path string, body interface{}) (map[string]interface{}, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &transportError{err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transportError{err: err}
	}

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusBadGateway {
			return nil, &transportError{err: fmt.Errorf("HTTP %d", resp.StatusCode)}
		}
		return nil, fmt.Errorf("failed to parse response (HTTP %d): %w", resp.StatusCode, err)
	}

	if errValue, ok := result["value"].(map[string]interface{}); ok {
		if errType, ok := errValue["error"].(string); ok {
			msg, _ := errValue["message"].(string)
			return result, &WebDriverError{Status: resp.StatusCode, Code: errType, Message: msg}
		}
	}
	return result, nil
}

type transportError struct{ err error }

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func extractElementID(value map[string]interface{}) string {
	if id, ok := value[w3cElementKey].(string); ok {
		return id
	}
	if id, ok := value["ELEMENT"].(string); ok {
		return id
	}
	return ""
}
