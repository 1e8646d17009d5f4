package snapcast

// Volume is a client's volume setting.
type Volume struct {
	Percent int  `json:"percent"`
	Muted   bool `json:"muted"`
}

// Host is the metadata a client reports about the machine it runs on.
type Host struct {
	IP   string `json:"ip,omitempty"`
	Name string `json:"name,omitempty"`
	MAC  string `json:"mac,omitempty"`
	OS   string `json:"os,omitempty"`
	Arch string `json:"arch,omitempty"`
}

// ClientConfig is the server-side configuration of one client.
type ClientConfig struct {
	Name     string `json:"name"`
	Latency  int    `json:"latency"`
	Instance int    `json:"instance,omitempty"`
	Volume   Volume `json:"volume"`
}

// Client is one audio output endpoint.
type Client struct {
	ID        string       `json:"id"`
	Connected bool         `json:"connected"`
	Config    ClientConfig `json:"config"`
	Host      Host         `json:"host"`
}

// DisplayName prefers the configured name and falls back to the reported
// hostname.
func (c Client) DisplayName() string {
	if c.Config.Name != "" {
		return c.Config.Name
	}
	return c.Host.Name
}

// Group is a set of clients sharing one assigned stream.
type Group struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Muted    bool     `json:"muted"`
	StreamID string   `json:"stream_id"`
	Clients  []Client `json:"clients"`
}

// Stream is a named audio source available for assignment to a group.
type Stream struct {
	ID     string         `json:"id"`
	Status string         `json:"status"`
	URI    map[string]any `json:"uri,omitempty"`
}

// ServerStatus is the Server.GetStatus result shape.
type ServerStatus struct {
	Server struct {
		Groups  []Group  `json:"groups"`
		Streams []Stream `json:"streams"`
	} `json:"server"`
}
