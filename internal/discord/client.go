// Package discord provides a client for Discord's local IPC socket,
// enabling Rich Presence updates via the SET_ACTIVITY command.
//
// The [Client] type manages connection lifecycle, command framing, and
// session rebinding: Discord binds an application identity to the
// connection at handshake time, so switching games with different
// application IDs requires closing and reopening the socket. Platform-
// specific socket discovery is handled by conn_unix.go and conn_windows.go.
package discord

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ///////////////////////////////////////////////
// Sentinel Errors
// ///////////////////////////////////////////////

// ErrNotConnected is returned when an operation requires an active connection.
var ErrNotConnected = errors.New("not connected")

// retryDelay is how long to wait before the single reconnect-and-resend
// attempt after a broken-pipe write failure.
var retryDelay = 5 * time.Second

// ///////////////////////////////////////////////
// Data Types
// ///////////////////////////////////////////////

// Button represents a clickable button in a Discord Rich Presence activity.
type Button struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Timestamps holds the start timestamp for an activity.
type Timestamps struct {
	Start int64 `json:"start,omitempty"`
}

// Assets holds image keys and tooltip text for an activity. Empty fields
// are omitted from the wire payload; Discord rejects empty strings.
type Assets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
	SmallImage string `json:"small_image,omitempty"`
	SmallText  string `json:"small_text,omitempty"`
}

// Activity represents a Discord Rich Presence activity.
type Activity struct {
	Details    string      `json:"details,omitempty"`
	State      string      `json:"state,omitempty"`
	Timestamps *Timestamps `json:"timestamps,omitempty"`
	Assets     *Assets     `json:"assets,omitempty"`
	Buttons    []Button    `json:"buttons,omitempty"`
}

// ///////////////////////////////////////////////
// Client
// ///////////////////////////////////////////////

// Client manages a connection to Discord's IPC socket. At most one session
// is open at a time, bound to the application ID it was handshaken with.
type Client struct {
	// mu protects appID, conn, and nonce from concurrent access.
	mu sync.Mutex
	// appID is the Discord application identifier the session is bound to.
	appID string
	// conn is the active IPC socket connection, or nil when disconnected.
	conn net.Conn
	// nonce is a monotonically increasing counter used to tag each command frame.
	nonce uint64

	// dial is the platform socket dialer, injectable for tests.
	dial func() (net.Conn, error)
}

// NewClient creates a new Discord IPC client for the given application ID.
func NewClient(appID string) *Client {
	return &Client{appID: appID, dial: connectToDiscord}
}

// AppID returns the application ID the client is currently bound to.
func (c *Client) AppID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.appID
}

// Connect establishes a connection to Discord via IPC and sends the handshake.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked()
}

// connectLocked dials and handshakes. The caller must hold c.mu.
func (c *Client) connectLocked() error {
	// Close old connection if reconnecting.
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	conn, err := c.dial()
	if err != nil {
		return err
	}
	c.conn = conn

	if err := c.handshake(); err != nil {
		c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// Rebind ensures the session is bound to appID. A connected session with a
// matching ID is left alone; otherwise the old session is closed and a new
// handshake is performed, because the wire protocol fixes the application
// identity at connect time.
func (c *Client) Rebind(appID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && c.appID == appID {
		return nil
	}
	c.appID = appID
	return c.connectLocked()
}

// SetActivity sends a SET_ACTIVITY command to Discord. On a write failure
// that looks like a broken pipe, it makes exactly one delayed reconnect and
// resend attempt before surfacing the error; the caller's next tick retries
// naturally after that.
func (c *Client) SetActivity(activity *Activity) error {
	return c.sendActivity(activity)
}

// ClearActivity removes any presence the client has set.
func (c *Client) ClearActivity() error {
	return c.sendActivity(nil)
}

// sendActivity submits an activity (nil clears) with the broken-pipe retry.
func (c *Client) sendActivity(activity *Activity) error {
	err := c.trySendActivity(activity)
	if err == nil || !isPipeError(err) {
		return err
	}

	time.Sleep(retryDelay)
	if err := c.Connect(); err != nil {
		return fmt.Errorf("reconnect after broken pipe: %w", err)
	}
	return c.trySendActivity(activity)
}

// trySendActivity performs a single SET_ACTIVITY submission.
func (c *Client) trySendActivity(activity *Activity) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// json.Marshal of a typed nil pointer inside map[string]any yields
	// "null", which is exactly what a presence clear needs.
	return c.sendCommand("SET_ACTIVITY", map[string]any{
		"pid":      os.Getpid(),
		"activity": activity,
	})
}

// Close clears the activity and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	// Best-effort clear before closing.
	_ = c.sendCommand("SET_ACTIVITY", map[string]any{
		"pid":      os.Getpid(),
		"activity": (*Activity)(nil),
	})

	err := c.conn.Close()
	c.conn = nil
	return err
}

// Connected reports whether the client has an active connection.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// handshake sends the initial handshake frame to Discord and validates the
// response. The caller must hold c.mu.
func (c *Client) handshake() error {
	payload, err := json.Marshal(map[string]any{
		"v":         1,
		"client_id": c.appID,
	})
	if err != nil {
		return fmt.Errorf("marshaling handshake: %w", err)
	}

	frame, err := EncodeFrame(OpHandshake, payload)
	if err != nil {
		return fmt.Errorf("encoding handshake: %w", err)
	}
	if _, err = c.conn.Write(frame); err != nil {
		return fmt.Errorf("writing handshake: %w", err)
	}

	opcode, respData, err := DecodeFrame(c.conn)
	if err != nil {
		return fmt.Errorf("reading handshake response: %w", err)
	}
	if opcode != OpFrame {
		return fmt.Errorf("unexpected handshake response opcode: %d", opcode)
	}

	var resp map[string]any
	if err := json.Unmarshal(respData, &resp); err != nil {
		return fmt.Errorf("parsing handshake response: %w", err)
	}
	if evt, _ := resp["evt"].(string); evt == "ERROR" {
		msg, _ := resp["data"].(map[string]any)["message"].(string)
		return fmt.Errorf("handshake rejected: %s", msg)
	}

	return nil
}

// sendCommand writes a command frame to the IPC connection.
// The caller must hold c.mu.
func (c *Client) sendCommand(cmd string, args map[string]any) error {
	if c.conn == nil {
		return ErrNotConnected
	}

	c.nonce++
	nonce := strconv.FormatUint(c.nonce, 10)

	payload, err := json.Marshal(map[string]any{
		"cmd":   cmd,
		"args":  args,
		"nonce": nonce,
	})
	if err != nil {
		return fmt.Errorf("marshaling command: %w", err)
	}

	frame, err := EncodeFrame(OpFrame, payload)
	if err != nil {
		return fmt.Errorf("encoding command: %w", err)
	}
	if _, err = c.conn.Write(frame); err != nil {
		return fmt.Errorf("writing command: %w", err)
	}
	return nil
}

// isPipeError reports whether err indicates the IPC peer went away mid-
// session, the one failure mode worth an immediate reconnect attempt.
func isPipeError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "pipe is being closed") ||
		strings.Contains(msg, "connection reset")
}
