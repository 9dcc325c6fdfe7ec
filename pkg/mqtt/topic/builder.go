package topic

import (
	"strings"
)

// Direction segments. They are the contract with the simulator-side bridge and
// must not change without updating the export scripts.
const (
	// SegmentSim carries values published by the simulator export.
	// Structure: {root}/sim/{name}
	SegmentSim = "sim"

	// SegmentPanel carries values and commands published by the panel.
	// Structure: {root}/panel/{name}
	SegmentPanel = "panel"

	// Wildcard is the single-level MQTT wildcard.
	Wildcard = "+"
)

// Builder constructs named-value topics under a common root.
type Builder struct {
	root string
}

// NewBuilder returns a Builder for root, e.g. "panellink/v1".
func NewBuilder(root string) *Builder {
	return &Builder{root: strings.TrimSuffix(root, "/")}
}

// Sim returns the topic on which the simulator publishes name.
func (b *Builder) Sim(name string) string {
	return b.Build(SegmentSim, name)
}

// SimWildcard matches every simulator-published name.
func (b *Builder) SimWildcard() string {
	return b.Build(SegmentSim, Wildcard)
}

// Panel returns the topic on which the panel publishes name.
func (b *Builder) Panel(name string) string {
	return b.Build(SegmentPanel, name)
}

// Build joins root, segment and name: {root}/{segment}/{name}.
func (b *Builder) Build(segment, name string) string {
	return b.root + "/" + segment + "/" + name
}

// Name extracts the value name from a topic built by this Builder. It returns
// false if topic does not belong to segment.
func (b *Builder) Name(segment, topic string) (string, bool) {
	prefix := b.root + "/" + segment + "/"
	if !strings.HasPrefix(topic, prefix) {
		return "", false
	}
	name := topic[len(prefix):]
	if name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}
