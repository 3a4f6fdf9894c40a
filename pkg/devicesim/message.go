package devicesim

import (
	"encoding/json"
	"net/url"
	"strings"
)

// Command is one cmds entry received from the app.
type Command struct {
	CmdID    uint32 `json:"cmd_id"`
	Method   string `json:"method"`
	Resource string `json:"resource"`
	Data     string `json:"data"`
	URI      string `json:"uri"`
}

// PropertyName returns the name query parameter of the resource.
func (c Command) PropertyName() string {
	_, raw, ok := strings.Cut(c.Resource, "?")
	if !ok {
		return ""
	}
	q, err := url.ParseQuery(raw)
	if err != nil {
		return ""
	}
	return q.Get("name")
}

// Datapoint is a property value pushed by the app.
type Datapoint struct {
	Name     string `json:"name"`
	Value    any    `json:"value"`
	BaseType string `json:"base_type"`
	DSN      string `json:"dsn"`
	ID       string `json:"id"`

	node bool
}

type propertyEntry struct {
	Property Datapoint `json:"property"`
}

type cmdEntry struct {
	Cmd Command `json:"cmd"`
}

// Message is the data of one poll answer.
type Message struct {
	Cmds           []Command
	Properties     []Datapoint
	NodeProperties []Datapoint
}

// Datapoints returns every pushed datapoint, node datapoints last.
func (m *Message) Datapoints() []Datapoint {
	out := make([]Datapoint, 0, len(m.Properties)+len(m.NodeProperties))
	out = append(out, m.Properties...)
	for _, dp := range m.NodeProperties {
		dp.node = true
		out = append(out, dp)
	}
	return out
}

// ParseMessage decodes poll data. An empty object is a valid message with
// nothing in it.
func ParseMessage(data []byte) (*Message, error) {
	var raw struct {
		Cmds           []cmdEntry      `json:"cmds"`
		Properties     []propertyEntry `json:"properties"`
		NodeProperties []propertyEntry `json:"node_properties"`
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	}

	m := &Message{}
	for _, e := range raw.Cmds {
		m.Cmds = append(m.Cmds, e.Cmd)
	}
	for _, e := range raw.Properties {
		m.Properties = append(m.Properties, e.Property)
	}
	for _, e := range raw.NodeProperties {
		m.NodeProperties = append(m.NodeProperties, e.Property)
	}
	return m, nil
}
