package profile

import (
	"bytes"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/autopeer-io/panellink/internal/panelagent/core"
	"github.com/autopeer-io/panellink/pkg/log"
)

// Profile is the persisted panel configuration.
type Profile struct {
	Name                    string     `yaml:"name,omitempty"`
	Vehicle                 string     `yaml:"vehicle"`
	UsesExportModule        bool       `yaml:"usesExportModule,omitempty"`
	ImpersonatedVehicleName string     `yaml:"impersonatedVehicleName,omitempty"`
	Bindings                []Binding  `yaml:"bindings,omitempty"`
	Viewports               []Viewport `yaml:"viewports,omitempty"`
	Monitors                []Monitor  `yaml:"monitors,omitempty"`

	// UnknownKeys lists the discarded keys found while decoding.
	UnknownKeys []string `yaml:"-"`
}

// Binding is a simulator value the panel reads.
type Binding struct {
	Name     string `yaml:"name"`
	Optional bool   `yaml:"optional,omitempty"`
}

// Rect is a screen area in pixels.
type Rect struct {
	X      int `yaml:"x"`
	Y      int `yaml:"y"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Contains reports whether o lies fully inside r.
func (r Rect) Contains(o Rect) bool {
	return o.X >= r.X && o.Y >= r.Y && o.X+o.Width <= r.X+r.Width && o.Y+o.Height <= r.Y+r.Height
}

// Overlaps reports whether r and o share any pixel.
func (r Rect) Overlaps(o Rect) bool {
	return r.X < o.X+o.Width && o.X < r.X+r.Width && r.Y < o.Y+o.Height && o.Y < r.Y+r.Height
}

// Viewport is a simulator-rendered display the panel needs on screen.
type Viewport struct {
	Name string `yaml:"name"`
	Rect `yaml:",inline"`
}

// Monitor is a physical display.
type Monitor struct {
	Name string `yaml:"name"`
	Rect `yaml:",inline"`
}

// Identity returns the vehicle identity the profile selects drivers for.
func (p *Profile) Identity() core.VehicleIdentity {
	return core.VehicleIdentity{Native: p.Vehicle, Impersonated: p.ImpersonatedVehicleName}
}

// Strategy returns the negotiation strategy the profile uses.
func (p *Profile) Strategy() core.Strategy {
	return core.StrategyFor(p.UsesExportModule)
}

// RequiredBindings returns the names of all non-optional bindings.
func (p *Profile) RequiredBindings() []string {
	var names []string
	for _, b := range p.Bindings {
		if !b.Optional {
			names = append(names, b.Name)
		}
	}
	return names
}

// Validate checks the profile against the vehicles that have an export driver.
func (p *Profile) Validate(known core.VehicleSet) error {
	if strings.TrimSpace(p.Vehicle) == "" {
		return &core.ConfigError{Field: "vehicle", Reason: "must be set"}
	}
	if !known.Contains(p.Vehicle) {
		return &core.ConfigError{Field: "vehicle", Value: p.Vehicle, Reason: "no export driver for this vehicle"}
	}
	if p.ImpersonatedVehicleName != "" && !known.Contains(p.ImpersonatedVehicleName) {
		return &core.ConfigError{
			Field:  "impersonatedVehicleName",
			Value:  p.ImpersonatedVehicleName,
			Reason: "no export driver for this vehicle",
		}
	}
	seen := make(map[string]struct{}, len(p.Bindings))
	for i, b := range p.Bindings {
		if b.Name == "" {
			return &core.ConfigError{Field: "bindings[" + strconv.Itoa(i) + "].name", Reason: "must be set"}
		}
		if _, dup := seen[b.Name]; dup {
			return &core.ConfigError{Field: "bindings", Value: b.Name, Reason: "duplicate binding"}
		}
		seen[b.Name] = struct{}{}
	}
	return nil
}

// Load reads and decodes the profile at path.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	p, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, nil
}

// Decode parses a YAML profile. Unknown keys are logged and discarded.
func Decode(data []byte) (*Profile, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &core.ConfigError{Field: "profile", Reason: err.Error()}
	}

	p := &Profile{}
	if len(root.Content) == 0 {
		return p, nil
	}
	doc := root.Content[0]

	unknownKeys(doc, reflect.TypeOf(*p), "", func(key string) {
		p.UnknownKeys = append(p.UnknownKeys, key)
	})
	for _, key := range p.UnknownKeys {
		log.Warn("Ignoring unknown profile field", "field", key)
	}

	if err := doc.Decode(p); err != nil {
		return nil, &core.ConfigError{Field: "profile", Reason: err.Error()}
	}
	return p, nil
}

// Encode renders p as YAML.
func Encode(p *Profile) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// unknownKeys walks node alongside t and reports mapping keys that no
// field of t decodes.
func unknownKeys(node *yaml.Node, t reflect.Type, path string, report func(string)) {
	switch t.Kind() {
	case reflect.Slice:
		if node.Kind != yaml.SequenceNode {
			return
		}
		for i, item := range node.Content {
			unknownKeys(item, t.Elem(), fmt.Sprintf("%s[%d]", path, i), report)
		}

	case reflect.Struct:
		if node.Kind != yaml.MappingNode {
			return
		}
		fields := yamlFields(t)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, val := node.Content[i].Value, node.Content[i+1]
			full := key
			if path != "" {
				full = path + "." + key
			}
			ft, ok := fields[key]
			if !ok {
				report(full)
				continue
			}
			unknownKeys(val, ft, full, report)
		}
	}
}

func yamlFields(t reflect.Type) map[string]reflect.Type {
	fields := make(map[string]reflect.Type)
	for i := range t.NumField() {
		f := t.Field(i)
		tag := f.Tag.Get("yaml")
		name, opts, _ := strings.Cut(tag, ",")
		if name == "-" {
			continue
		}
		if strings.Contains(opts, "inline") {
			for k, v := range yamlFields(f.Type) {
				fields[k] = v
			}
			continue
		}
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		fields[name] = f.Type
	}
	return fields
}
