package cable

import (
	"encoding/json"
	"sort"
	"strings"
)

// Subprotocols offered when dialing, in preference order.
var Subprotocols = []string{"actioncable-v1-json", "actioncable-unsupported"}

// Frame types sent by the server.
const (
	TypeWelcome      = "welcome"
	TypePing         = "ping"
	TypeConfirm      = "confirm_subscription"
	TypeReject       = "reject_subscription"
	TypeDisconnect   = "disconnect"
	CommandSubscribe = "subscribe"
	CommandUnsub     = "unsubscribe"
	CommandMessage   = "message"
)

// Identifier is the JSON-encoded channel descriptor the server echoes back
// on every frame for a subscription, e.g.
// {"channel":"ConversationChannel","conversation_id":"42"}.
type Identifier string

// NewIdentifier builds an identifier with "channel" first and the remaining
// params sorted by key, matching what a browser consumer sends.
func NewIdentifier(channel string, params map[string]string) Identifier {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k != "channel" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(`{"channel":`)
	writeJSONString(&b, channel)
	for _, k := range keys {
		b.WriteByte(',')
		writeJSONString(&b, k)
		b.WriteByte(':')
		writeJSONString(&b, params[k])
	}
	b.WriteByte('}')
	return Identifier(b.String())
}

// Params decodes the identifier back into its fields.
func (id Identifier) Params() (map[string]string, error) {
	var m map[string]string
	if err := json.Unmarshal([]byte(id), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func writeJSONString(b *strings.Builder, s string) {
	data, _ := json.Marshal(s)
	b.Write(data)
}

// ServerFrame is any frame received from the server.
type ServerFrame struct {
	Type       string          `json:"type,omitempty"`
	Identifier Identifier      `json:"identifier,omitempty"`
	Message    json.RawMessage `json:"message,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	Reconnect  *bool           `json:"reconnect,omitempty"`
}

// ClientCommand is a frame sent to the server.
type ClientCommand struct {
	Command    string     `json:"command"`
	Identifier Identifier `json:"identifier"`
	Data       string     `json:"data,omitempty"`
}
