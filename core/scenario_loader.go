// core/scenario_loader.go
package core

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/lan-simulator/model"
)

// Scenario summarizes what a load call produced: the devices and
// connections now in the KnowledgeBase, plus the decoded event list.
// Topology and events may live in one document or in separate files;
// loading twice into the same KB accumulates.
type Scenario struct {
	DeviceIDs   []string
	Connections int
	Events      []model.Event
}

// internal descriptor shapes – unexported so the wire format can
// evolve without touching the model types. Tags carry both JSON and
// YAML names because scenario files come in either flavor.
type scenarioDoc struct {
	Nodes       []deviceDesc     `json:"nodes" yaml:"nodes"`
	Connections []connectionDesc `json:"connections" yaml:"connections"`
	Events      []eventDesc      `json:"events" yaml:"events"`
}

type deviceDesc struct {
	ID         string          `json:"id" yaml:"id"`
	Type       string          `json:"type" yaml:"type"` // "PC" | "Switch"
	Name       string          `json:"name" yaml:"name"`
	Hardware   hardwareDesc    `json:"hardware" yaml:"hardware"`
	Interfaces []interfaceDesc `json:"interfaces" yaml:"interfaces"`
}

type hardwareDesc struct {
	NetworkCard networkCardDesc `json:"network_card" yaml:"network_card"`
}

type networkCardDesc struct {
	Name  string `json:"name" yaml:"name"`
	MAC   string `json:"mac" yaml:"mac"`
	Speed string `json:"speed" yaml:"speed"`
}

type interfaceDesc struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Type        string   `json:"type" yaml:"type"`
	MAC         string   `json:"mac" yaml:"mac"`
	IP          string   `json:"ip" yaml:"ip"`
	SubnetMask  string   `json:"subnet_mask" yaml:"subnet_mask"`
	Gateway     string   `json:"gateway" yaml:"gateway"`
	DNS         []string `json:"dns" yaml:"dns"`
	Status      string   `json:"status" yaml:"status"`
	ConnectedTo string   `json:"connected_to" yaml:"connected_to"`
}

type connectionDesc struct {
	FromInterface string `json:"from_interface" yaml:"from_interface"`
	ToInterface   string `json:"to_interface" yaml:"to_interface"`
}

type eventDesc struct {
	ID              string `json:"id" yaml:"id"`
	Type            string `json:"type" yaml:"type"`
	SourceInterface string `json:"source_interface" yaml:"source_interface"`
	DestinationIP   string `json:"destination_ip" yaml:"destination_ip"`
	Count           int    `json:"count" yaml:"count"`
	Timeout         int    `json:"timeout" yaml:"timeout"`
}

// LoadScenario reads a JSON scenario document from r, populates the
// KnowledgeBase with its devices and connections, and returns the
// summary together with any decoded events.
//
// Structural topology violations (self-connections, dangling or
// malformed references, duplicate identities) surface as
// *TopologyError before any simulation can start.
func LoadScenario(kb *KnowledgeBase, r io.Reader) (*Scenario, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("LoadScenario: read failed: %w", err)
	}
	return loadScenarioBytes(kb, data, false)
}

// LoadScenarioFile loads a scenario from path; a .yaml or .yml
// extension selects the YAML decoder, everything else decodes JSON.
func LoadScenarioFile(kb *KnowledgeBase, path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadScenarioFile: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	useYAML := ext == ".yaml" || ext == ".yml"
	return loadScenarioBytes(kb, data, useYAML)
}

func loadScenarioBytes(kb *KnowledgeBase, data []byte, useYAML bool) (*Scenario, error) {
	if kb == nil {
		return nil, fmt.Errorf("LoadScenario: kb is nil")
	}

	var doc scenarioDoc
	if useYAML {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("LoadScenario: yaml decode failed: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("LoadScenario: json decode failed: %w", err)
		}
	}

	scenario := &Scenario{
		DeviceIDs: make([]string, 0, len(doc.Nodes)),
		Events:    make([]model.Event, 0, len(doc.Events)),
	}

	// 1) Devices
	for _, desc := range doc.Nodes {
		if desc.ID == "" {
			return nil, fmt.Errorf("LoadScenario: node with empty id")
		}

		dev := &model.Device{
			ID:   desc.ID,
			Kind: model.KindFromString(desc.Type),
			Name: desc.Name,
			Hardware: model.Hardware{
				NetworkCard: model.NetworkCard{
					Name:  desc.Hardware.NetworkCard.Name,
					MAC:   desc.Hardware.NetworkCard.MAC,
					Speed: desc.Hardware.NetworkCard.Speed,
				},
			},
			Interfaces: make([]model.Interface, 0, len(desc.Interfaces)),
		}
		for _, ifd := range desc.Interfaces {
			dev.Interfaces = append(dev.Interfaces, model.Interface{
				ID:          ifd.ID,
				Name:        ifd.Name,
				Type:        ifd.Type,
				MAC:         ifd.MAC,
				IP:          ifd.IP,
				Subnet:      ifd.SubnetMask,
				Gateway:     ifd.Gateway,
				DNS:         ifd.DNS,
				Status:      ifd.Status,
				ConnectedTo: ifd.ConnectedTo,
			})
		}

		if err := kb.AddDevice(dev); err != nil {
			return nil, fmt.Errorf("LoadScenario: %w", err)
		}
		scenario.DeviceIDs = append(scenario.DeviceIDs, desc.ID)
	}

	// 2) Connections. Validation happens inside the KB so direct
	// AddConnection callers and loader callers behave identically.
	for _, desc := range doc.Connections {
		conn := model.Connection{From: desc.FromInterface, To: desc.ToInterface}
		if err := kb.AddConnection(conn); err != nil {
			return nil, fmt.Errorf("LoadScenario: %w", err)
		}
		scenario.Connections++
	}

	// 3) Events. Decoded as-is; unknown event types are kept so the
	// runner can apply its own skip policy.
	for _, desc := range doc.Events {
		scenario.Events = append(scenario.Events, model.Event{
			ID:              desc.ID,
			Type:            desc.Type,
			SourceInterface: desc.SourceInterface,
			DestinationIP:   desc.DestinationIP,
			Count:           desc.Count,
			TimeoutMs:       desc.Timeout,
		})
	}

	return scenario, nil
}
