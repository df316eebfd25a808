// Copyright 2025 The Agentwire Authors
// SPDX-License-Identifier: Apache-2.0

package agentwire

import (
	"fmt"
	"strings"
)

// Message roles.
const (
	// RoleUser marks a message authored by the calling user.
	RoleUser = "user"

	// RoleAgent marks a message authored by an agent.
	RoleAgent = "agent"
)

// PartType discriminates the variant held by a Part.
type PartType string

const (
	// PartTypeText is a plain text part.
	PartTypeText PartType = "text"

	// PartTypeFile is a file part, inline bytes or a URI reference.
	PartTypeFile PartType = "file"

	// PartTypeData is a structured key/value payload part.
	PartTypeData PartType = "data"
)

// FileContent carries the payload of a file part, either as base64 encoded
// inline bytes or as a URI reference. Exactly one of Bytes and URI must be
// set.
type FileContent struct {
	Name     string `json:"name,omitzero"`
	MimeType string `json:"mimeType,omitzero"`
	Bytes    string `json:"bytes,omitzero"`
	URI      string `json:"uri,omitzero"`
}

// Validate ensures the FileContent is valid.
func (f FileContent) Validate() error {
	if f.Bytes == "" && f.URI == "" {
		return fmt.Errorf("file part requires either bytes or uri")
	}
	if f.Bytes != "" && f.URI != "" {
		return fmt.Errorf("file part cannot have both bytes and uri")
	}
	return nil
}

// Part is one typed content unit inside a Message or Artifact. It is a tagged
// union: Type selects the variant and exactly one of Text, File or Data is
// populated. Consumers must switch on Type and reject unknown values.
type Part struct {
	Type     PartType       `json:"type"`
	Text     string         `json:"text,omitzero"`
	File     *FileContent   `json:"file,omitzero"`
	Data     map[string]any `json:"data,omitzero"`
	Metadata map[string]any `json:"metadata,omitzero"`
}

// NewTextPart creates a text part.
func NewTextPart(text string) Part {
	return Part{Type: PartTypeText, Text: text}
}

// NewFilePart creates a file part.
func NewFilePart(file FileContent) Part {
	return Part{Type: PartTypeFile, File: &file}
}

// NewDataPart creates a structured data part.
func NewDataPart(data map[string]any) Part {
	return Part{Type: PartTypeData, Data: data}
}

// Validate ensures the Part holds exactly the variant named by its type.
func (p Part) Validate() error {
	switch p.Type {
	case PartTypeText:
		if p.File != nil || p.Data != nil {
			return fmt.Errorf("text part cannot carry file or data content")
		}
	case PartTypeFile:
		if p.File == nil {
			return fmt.Errorf("file part requires file content")
		}
		if p.Text != "" || p.Data != nil {
			return fmt.Errorf("file part cannot carry text or data content")
		}
		if err := p.File.Validate(); err != nil {
			return err
		}
	case PartTypeData:
		if p.Data == nil {
			return fmt.Errorf("data part requires a data payload")
		}
		if p.Text != "" || p.File != nil {
			return fmt.Errorf("data part cannot carry text or file content")
		}
	default:
		return fmt.Errorf("unknown part type: %q", p.Type)
	}
	return nil
}

// Message is a unit of communication between a user and an agent. Messages
// are immutable once created.
type Message struct {
	Role     string         `json:"role"`
	Parts    []Part         `json:"parts"`
	Metadata map[string]any `json:"metadata,omitzero"`
}

// NewTextMessage creates a message with the given role holding a single text
// part.
func NewTextMessage(role, text string) Message {
	return Message{Role: role, Parts: []Part{NewTextPart(text)}}
}

// Validate ensures the Message is valid.
func (m Message) Validate() error {
	if m.Role != RoleUser && m.Role != RoleAgent {
		return fmt.Errorf("invalid message role: %q", m.Role)
	}
	if len(m.Parts) == 0 {
		return fmt.Errorf("message requires at least one part")
	}
	for i, part := range m.Parts {
		if err := part.Validate(); err != nil {
			return fmt.Errorf("part at index %d is invalid: %w", i, err)
		}
	}
	return nil
}

// TextContent joins the text of all text parts of the message, separated by
// single spaces. Non-text parts are skipped.
func TextContent(m Message) string {
	var texts []string
	for _, part := range m.Parts {
		if part.Type == PartTypeText && part.Text != "" {
			texts = append(texts, part.Text)
		}
	}
	return strings.Join(texts, " ")
}
