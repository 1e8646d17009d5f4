package pool

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"gopkg.in/yaml.v3"
)

// Instance describes one controllable audio endpoint. Index is the ordinal
// used for reverse-proxy path construction.
type Instance struct {
	ID         string   `json:"id" yaml:"id"`
	Host       string   `json:"host" yaml:"host"`
	Port       int      `json:"port" yaml:"port"`
	Extensions []string `json:"extensions,omitempty" yaml:"extensions,omitempty"`
	Index      int      `json:"index" yaml:"index"`
}

// Settings is the externally supplied configuration document: an ordered
// instance list plus global options.
type Settings struct {
	UseProxy  bool       `json:"use_proxy" yaml:"use_proxy"`
	Instances []Instance `json:"instances" yaml:"instances"`
}

// Source supplies a settings document at pool initialization.
type Source interface {
	Fetch(ctx context.Context) (*Settings, error)
}

// HTTPSource fetches the settings document from a JSON endpoint.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

func (s HTTPSource) Fetch(ctx context.Context) (*Settings, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("settings request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch settings: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch settings: unexpected status %d", resp.StatusCode)
	}

	var settings Settings
	if err := json.NewDecoder(resp.Body).Decode(&settings); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	return &settings, nil
}

// FileSource reads the settings document from a local YAML file.
type FileSource struct {
	Path string
}

func (s FileSource) Fetch(_ context.Context) (*Settings, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read settings file: %w", err)
	}
	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("parse settings file: %w", err)
	}
	return &settings, nil
}
