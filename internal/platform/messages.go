package platform

import (
	"encoding/json"
	"strings"
)

// StateMessage is the payload published on automation/state/{entity_id}
type StateMessage struct {
	State        string `json:"state"`
	FriendlyName string `json:"friendly_name,omitempty"`
	Timestamp    string `json:"timestamp,omitempty"`
}

// CommandMessage is the payload published on automation/command/{entity_id}
type CommandMessage struct {
	Action     string `json:"action"`
	Brightness *int   `json:"brightness,omitempty"`
	ColorTemp  *int   `json:"color_temp,omitempty"`
	Source     string `json:"source"`
	Timestamp  string `json:"timestamp"`
}

// LightSettings are optional attributes sent with an "on" command; nil
// fields are left out, a zero level is sent as 0
type LightSettings struct {
	Brightness *int
	ColorTemp  *int
}

// parseStateMessage accepts the JSON form as well as a bare state string
func parseStateMessage(payload []byte) StateMessage {
	var msg StateMessage
	if err := json.Unmarshal(payload, &msg); err == nil && msg.State != "" {
		return msg
	}
	return StateMessage{State: strings.TrimSpace(string(payload))}
}
