package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

const nodeType = "schema"

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type NodeData struct {
	Label  string  `json:"label"`
	Fields []Field `json:"fields"`
}

// Node is one table in the diagram.
type Node struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// Edge is a relationship line between two tables.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// Document is the whole diagram as it is stored and exported.
type Document struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

func (d Document) clone() Document {
	out := Document{
		Nodes: make([]Node, len(d.Nodes)),
		Edges: append([]Edge{}, d.Edges...),
	}
	for i, n := range d.Nodes {
		out.Nodes[i] = n.clone()
	}
	return out
}

func (n Node) clone() Node {
	n.Data.Fields = append([]Field{}, n.Data.Fields...)
	return n
}

func (d Document) nodeIndex(id string) int {
	for i, n := range d.Nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

// MarshalJSON writes empty lists as [] rather than null.
func (d Document) MarshalJSON() ([]byte, error) {
	type plain Document
	p := plain(d)
	if p.Nodes == nil {
		p.Nodes = []Node{}
	}
	if p.Edges == nil {
		p.Edges = []Edge{}
	}
	return json.Marshal(p)
}

// parseDocument requires both nodes and edges to be present.
func parseDocument(data []byte) (Document, error) {
	var raw struct {
		Nodes *[]Node `json:"nodes"`
		Edges *[]Edge `json:"edges"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if raw.Nodes == nil || raw.Edges == nil {
		return Document{}, fmt.Errorf("%w: nodes and edges are required", ErrInvalidDocument)
	}
	doc := Document{Nodes: *raw.Nodes, Edges: *raw.Edges}
	for i := range doc.Nodes {
		if doc.Nodes[i].Type == "" {
			doc.Nodes[i].Type = nodeType
		}
		if doc.Nodes[i].Data.Fields == nil {
			doc.Nodes[i].Data.Fields = []Field{}
		}
	}
	return doc, nil
}

// ValidateNodeData checks what the table editor checks before saving and
// returns the trimmed data.
func ValidateNodeData(label string, fields []Field) (NodeData, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return NodeData{}, fmt.Errorf("%w: table name cannot be empty", ErrInvalidNode)
	}
	out := NodeData{Label: label, Fields: make([]Field, len(fields))}
	for i, f := range fields {
		name := strings.TrimSpace(f.Name)
		typ := strings.TrimSpace(f.Type)
		if name == "" || typ == "" {
			return NodeData{}, fmt.Errorf("%w: field #%d is incomplete", ErrInvalidNode, i+1)
		}
		out.Fields[i] = Field{Name: name, Type: typ}
	}
	return out, nil
}

func edgeID(source, sourceHandle, target, targetHandle string) string {
	return fmt.Sprintf("xy-edge__%s%s-%s%s", source, sourceHandle, target, targetHandle)
}
