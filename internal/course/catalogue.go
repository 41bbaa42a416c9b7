// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package course

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/golf_rangefinder/internal/gps"
)

// On disk a catalogue maps course name to
//
//	{tee_location: [lat, lon] | null, pins: {"<hole>": [lat, lon]}}
//
// Course order is kept as written, which is the order of first save.

type wireCourse struct {
	Tee  []float64            `json:"tee_location" yaml:"tee_location"`
	Pins map[string][]float64 `json:"pins" yaml:"pins"`
}

// entry is one named record in file order.
type entry struct {
	name string
	wire wireCourse
}

func entryFor(c Course) entry {
	w := wireCourse{Pins: make(map[string][]float64, len(c.Pins))}
	if c.Tee != nil {
		w.Tee = []float64{c.Tee.Latitude, c.Tee.Longitude}
	}
	for h, p := range c.Pins {
		w.Pins[strconv.Itoa(h)] = []float64{p.Latitude, p.Longitude}
	}
	return entry{name: c.Name, wire: w}
}

func pointFrom(v []float64) (gps.Coordinate, error) {
	if len(v) != 2 {
		return gps.Coordinate{}, fmt.Errorf("want [lat, lon], got %d values", len(v))
	}
	c := gps.Coordinate{Latitude: v[0], Longitude: v[1]}
	return c, c.Validate()
}

// course converts the wire record, dropping (and describing) anything that
// would break the Course invariants.
func (e entry) course() (Course, []string) {
	var dropped []string
	c := Course{Name: strings.TrimSpace(e.name), Pins: make(map[int]gps.Coordinate)}
	if e.wire.Tee != nil {
		if tee, err := pointFrom(e.wire.Tee); err != nil {
			dropped = append(dropped, fmt.Sprintf("tee_location: %v", err))
		} else {
			c.Tee = &tee
		}
	}
	for key, v := range e.wire.Pins {
		hole, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil || checkHole(hole) != nil {
			dropped = append(dropped, fmt.Sprintf("pin for hole %q", key))
			continue
		}
		pin, err := pointFrom(v)
		if err != nil {
			dropped = append(dropped, fmt.Sprintf("pin %d: %v", hole, err))
			continue
		}
		c.Pins[hole] = pin
	}
	return c, dropped
}

type codec interface {
	decode(data []byte) ([]entry, error)
	encode(entries []entry) ([]byte, error)
}

func codecFor(path string) codec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yamlCodec{}
	default:
		return jsonCodec{}
	}
}

type jsonCodec struct{}

func (jsonCodec) decode(data []byte) ([]entry, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("catalogue must be a JSON object")
	}
	var out []entry
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, _ := tok.(string)
		var w wireCourse
		if err := dec.Decode(&w); err != nil {
			return nil, fmt.Errorf("course %q: %w", name, err)
		}
		out = append(out, entry{name: name, wire: w})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after catalogue")
	}
	return out, nil
}

func (jsonCodec) encode(entries []entry) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(e.name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteString(`:{"tee_location":`)
		tee, err := json.Marshal(e.wire.Tee)
		if err != nil {
			return nil, err
		}
		buf.Write(tee)
		buf.WriteString(`,"pins":{`)
		for j, key := range sortedHoleKeys(e.wire.Pins) {
			if j > 0 {
				buf.WriteByte(',')
			}
			pin, err := json.Marshal(e.wire.Pins[key])
			if err != nil {
				return nil, err
			}
			fmt.Fprintf(&buf, "%q:%s", key, pin)
		}
		buf.WriteString("}}")
	}
	buf.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

func sortedHoleKeys(pins map[string][]float64) []string {
	keys := make([]string, 0, len(pins))
	for h := 1; h <= Holes; h++ {
		if _, ok := pins[strconv.Itoa(h)]; ok {
			keys = append(keys, strconv.Itoa(h))
		}
	}
	return keys
}

type yamlCodec struct{}

func (yamlCodec) decode(data []byte) ([]entry, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("catalogue must be a YAML mapping")
	}
	out := make([]entry, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		name := root.Content[i].Value
		var w wireCourse
		if err := root.Content[i+1].Decode(&w); err != nil {
			return nil, fmt.Errorf("course %q: %w", name, err)
		}
		out = append(out, entry{name: name, wire: w})
	}
	return out, nil
}

func (yamlCodec) encode(entries []entry) ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, e := range entries {
		rec := &yaml.Node{Kind: yaml.MappingNode}

		tee := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
		if e.wire.Tee != nil {
			tee = pointNode(e.wire.Tee)
		}
		pins := &yaml.Node{Kind: yaml.MappingNode}
		for _, key := range sortedHoleKeys(e.wire.Pins) {
			pins.Content = append(pins.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key, Style: yaml.DoubleQuotedStyle},
				pointNode(e.wire.Pins[key]))
		}
		rec.Content = append(rec.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: "tee_location"}, tee,
			&yaml.Node{Kind: yaml.ScalarNode, Value: "pins"}, pins)

		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.name}, rec)
	}
	doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}
	return yaml.Marshal(doc)
}

func pointNode(v []float64) *yaml.Node {
	n := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, f := range v {
		n.Content = append(n.Content, &yaml.Node{
			Kind:  yaml.ScalarNode,
			Value: strconv.FormatFloat(f, 'f', -1, 64),
		})
	}
	return n
}
