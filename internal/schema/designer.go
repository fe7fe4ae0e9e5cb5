// Package schema is the entity-relationship diagram editor. Every change is
// written to the mirror as one JSON document.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/querydesk/querydesk-cli/internal/mirror"
)

var (
	ErrNodeNotFound    = errors.New("table not found")
	ErrEdgeNotFound    = errors.New("relation not found")
	ErrInvalidDocument = errors.New("invalid schema JSON")
	ErrInvalidNode     = errors.New("invalid table")
	ErrLastField       = errors.New("schema must contain at least one field")
)

const (
	newNodeLabel = "new_table"
	newNodeX     = 150
	newNodeY     = 150
	copyOffset   = 40
)

type Designer struct {
	mu      sync.Mutex
	storage mirror.Storage
	log     logrus.FieldLogger
	doc     Document

	newID func() string
}

// Open loads the saved diagram. A missing or unreadable one starts empty.
func Open(s mirror.Storage, log logrus.FieldLogger) *Designer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	d := &Designer{storage: s, log: log, newID: uuid.NewString}

	data, ok, err := s.GetItem(mirror.KeySchema)
	switch {
	case err != nil:
		log.WithError(err).Warn("Could not read saved schema")
	case ok:
		doc, err := parseDocument(data)
		if err != nil {
			log.WithError(err).Warn("Ignoring unreadable saved schema")
			break
		}
		d.doc = doc
	}
	return d
}

// Document returns a copy of the current diagram.
func (d *Designer) Document() Document {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.clone()
}

// Node returns a copy of one table.
func (d *Designer) Node(id string) (Node, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.doc.nodeIndex(id)
	if i < 0 {
		return Node{}, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return d.doc.Nodes[i].clone(), nil
}

// AddNode adds an empty table at the default position.
func (d *Designer) AddNode() (Node, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := Node{
		ID:       d.newID(),
		Type:     nodeType,
		Position: Position{X: newNodeX, Y: newNodeY},
		Data:     NodeData{Label: newNodeLabel, Fields: []Field{}},
	}
	next := d.doc.clone()
	next.Nodes = append(next.Nodes, n)
	if err := d.commitLocked(next); err != nil {
		return Node{}, err
	}
	return n.clone(), nil
}

// Duplicate copies a table and its fields next to the original. Edges are
// not copied.
func (d *Designer) Duplicate(id string) (Node, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	i := d.doc.nodeIndex(id)
	if i < 0 {
		return Node{}, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	src := d.doc.Nodes[i].clone()
	n := Node{
		ID:       fmt.Sprintf("%s-copy-%s", src.ID, d.newID()),
		Type:     src.Type,
		Position: Position{X: src.Position.X + copyOffset, Y: src.Position.Y + copyOffset},
		Data:     src.Data,
	}
	next := d.doc.clone()
	next.Nodes = append(next.Nodes, n)
	if err := d.commitLocked(next); err != nil {
		return Node{}, err
	}
	return n.clone(), nil
}

// DeleteNode removes a table and every edge touching it.
func (d *Designer) DeleteNode(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	i := d.doc.nodeIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	next := d.doc.clone()
	next.Nodes = append(next.Nodes[:i], next.Nodes[i+1:]...)
	edges := make([]Edge, 0, len(next.Edges))
	for _, e := range next.Edges {
		if e.Source == id || e.Target == id {
			continue
		}
		edges = append(edges, e)
	}
	next.Edges = edges
	return d.commitLocked(next)
}

// Connect draws an edge from source to target. Connecting the same pair
// twice returns the existing edge.
func (d *Designer) Connect(source, target string) (Edge, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, id := range []string{source, target} {
		if d.doc.nodeIndex(id) < 0 {
			return Edge{}, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
		}
	}
	for _, e := range d.doc.Edges {
		if e.Source == source && e.Target == target && e.SourceHandle == "" && e.TargetHandle == "" {
			return e, nil
		}
	}

	e := Edge{ID: edgeID(source, "", target, ""), Source: source, Target: target}
	next := d.doc.clone()
	next.Edges = append(next.Edges, e)
	if err := d.commitLocked(next); err != nil {
		return Edge{}, err
	}
	return e, nil
}

// Disconnect removes an edge by id.
func (d *Designer) Disconnect(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	next := d.doc.clone()
	edges := next.Edges[:0]
	found := false
	for _, e := range next.Edges {
		if e.ID == id {
			found = true
			continue
		}
		edges = append(edges, e)
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrEdgeNotFound, id)
	}
	next.Edges = edges
	return d.commitLocked(next)
}

func (d *Designer) Move(id string, x, y float64) error {
	return d.mutateNode(id, func(n *Node) error {
		n.Position = Position{X: x, Y: y}
		return nil
	})
}

// Update replaces a table's name and fields after validating them.
func (d *Designer) Update(id, label string, fields []Field) error {
	data, err := ValidateNodeData(label, fields)
	if err != nil {
		return err
	}
	return d.mutateNode(id, func(n *Node) error {
		n.Data = data
		return nil
	})
}

// Rename changes only the table name.
func (d *Designer) Rename(id, label string) error {
	return d.mutateNode(id, func(n *Node) error {
		data, err := ValidateNodeData(label, n.Data.Fields)
		if err != nil {
			return err
		}
		n.Data = data
		return nil
	})
}

// AddField appends a complete field to a table.
func (d *Designer) AddField(id string, f Field) error {
	return d.mutateNode(id, func(n *Node) error {
		data, err := ValidateNodeData(n.Data.Label, append(n.Data.Fields, f))
		if err != nil {
			return err
		}
		n.Data = data
		return nil
	})
}

// RemoveField drops the field at index. The last field cannot be removed.
func (d *Designer) RemoveField(id string, index int) error {
	return d.mutateNode(id, func(n *Node) error {
		if index < 0 || index >= len(n.Data.Fields) {
			return fmt.Errorf("%w: no field #%d", ErrInvalidNode, index+1)
		}
		if len(n.Data.Fields) == 1 {
			return ErrLastField
		}
		n.Data.Fields = append(n.Data.Fields[:index], n.Data.Fields[index+1:]...)
		return nil
	})
}

// Export writes the diagram as indented JSON.
func (d *Designer) Export(w io.Writer) error {
	doc := d.Document()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// Import replaces the diagram with the one read from r. On any error the
// current diagram is kept.
func (d *Designer) Import(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	doc, err := parseDocument(data)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.commitLocked(doc)
}

func (d *Designer) mutateNode(id string, fn func(n *Node) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	i := d.doc.nodeIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	next := d.doc.clone()
	if err := fn(&next.Nodes[i]); err != nil {
		return err
	}
	return d.commitLocked(next)
}

// commitLocked saves next and makes it current only if the save worked.
func (d *Designer) commitLocked(next Document) error {
	data, err := json.Marshal(next)
	if err != nil {
		return err
	}
	if err := d.storage.SetItem(mirror.KeySchema, data); err != nil {
		return fmt.Errorf("save schema: %w", err)
	}
	d.doc = next
	return nil
}
