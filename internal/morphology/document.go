package morphology

import (
	"encoding/json"
	"fmt"
	"os"
)

// Document is the externally supplied structural specification. It is
// the import boundary: everything in it is validated before a Skeleton
// is built, and nothing else ever mutates a loaded Skeleton.
type Document struct {
	Name   string      `json:"name"`
	Joints []JointSpec `json:"joints"`
	Loops  []LoopSpec  `json:"loops,omitempty"`
}

// JointSpec describes one joint in the import format. Offset is the
// bone vector from the parent joint expressed in the parent frame; Axis
// is the motion axis for revolute and prismatic joints.
type JointSpec struct {
	ID        string     `json:"id"`
	Parent    string     `json:"parent,omitempty"`
	Kind      Kind       `json:"kind"`
	Offset    [3]float64 `json:"offset"`
	Axis      [3]float64 `json:"axis,omitempty"`
	Mass      float64    `json:"mass"`
	Inertia   float64    `json:"inertia"`
	Limits    []Limit    `json:"limits"`
	Actuation Actuation  `json:"actuation"`
	Rest      []float64  `json:"rest,omitempty"`
}

// LoopSpec flags an intentional closed kinematic loop.
type LoopSpec struct {
	From     string  `json:"from"`
	To       string  `json:"to"`
	Distance float64 `json:"distance"`
}

// ParseDocument decodes a JSON structural specification.
func ParseDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("parse morphology document: %w", err)
	}
	return doc, nil
}

// ReadDocument loads a structural specification from disk.
func ReadDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	return ParseDocument(data)
}

// EncodeDocument serializes a document for storage.
func EncodeDocument(doc Document) ([]byte, error) {
	return json.Marshal(doc)
}
