// Copyright 2025 The Agentwire Authors
// SPDX-License-Identifier: Apache-2.0

package agentwire

import (
	"fmt"
)

// Artifact is an output produced while processing a task. Artifacts are
// identified by their integer index within the task. A producer streams a
// large artifact in chunks by reusing one index with Append set until it
// marks the final chunk with LastChunk.
type Artifact struct {
	Name        string         `json:"name,omitzero"`
	Description string         `json:"description,omitzero"`
	Parts       []Part         `json:"parts"`
	Index       int            `json:"index"`
	Append      bool           `json:"append,omitzero"`
	LastChunk   bool           `json:"lastChunk,omitzero"`
	Metadata    map[string]any `json:"metadata,omitzero"`
}

// Validate ensures the Artifact is valid.
func (a Artifact) Validate() error {
	if a.Index < 0 {
		return fmt.Errorf("artifact index cannot be negative")
	}
	if len(a.Parts) == 0 {
		return fmt.Errorf("artifact requires at least one part")
	}
	for i, part := range a.Parts {
		if err := part.Validate(); err != nil {
			return fmt.Errorf("part at index %d is invalid: %w", i, err)
		}
	}
	return nil
}

// clone returns a deep copy of the artifact.
func (a Artifact) clone() Artifact {
	c := a
	c.Parts = clonePartSlice(a.Parts)
	c.Metadata = cloneMap(a.Metadata)
	return c
}

func clonePartSlice(parts []Part) []Part {
	if parts == nil {
		return nil
	}
	out := make([]Part, len(parts))
	for i, p := range parts {
		out[i] = p
		if p.File != nil {
			file := *p.File
			out[i].File = &file
		}
		out[i].Data = cloneMap(p.Data)
		out[i].Metadata = cloneMap(p.Metadata)
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
