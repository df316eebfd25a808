// Copyright 2025 The Agentwire Authors
// SPDX-License-Identifier: Apache-2.0

package agentwire

import (
	"testing"
)

func TestPartValidate(t *testing.T) {
	tests := []struct {
		name    string
		part    Part
		wantErr bool
	}{
		{
			name: "valid text part",
			part: NewTextPart("hello"),
		},
		{
			name: "valid file part with bytes",
			part: NewFilePart(FileContent{Name: "report.pdf", MimeType: "application/pdf", Bytes: "aGVsbG8="}),
		},
		{
			name: "valid file part with uri",
			part: NewFilePart(FileContent{Name: "report.pdf", URI: "https://example.com/report.pdf"}),
		},
		{
			name: "valid data part",
			part: NewDataPart(map[string]any{"key": "value"}),
		},
		{
			name:    "unknown type",
			part:    Part{Type: "video", Text: "x"},
			wantErr: true,
		},
		{
			name:    "empty type",
			part:    Part{Text: "hello"},
			wantErr: true,
		},
		{
			name:    "text part with data payload",
			part:    Part{Type: PartTypeText, Text: "hello", Data: map[string]any{"k": "v"}},
			wantErr: true,
		},
		{
			name:    "file part without content",
			part:    Part{Type: PartTypeFile},
			wantErr: true,
		},
		{
			name:    "file part with both bytes and uri",
			part:    NewFilePart(FileContent{Bytes: "aGVsbG8=", URI: "https://example.com/f"}),
			wantErr: true,
		},
		{
			name:    "file part with neither bytes nor uri",
			part:    NewFilePart(FileContent{Name: "empty.txt"}),
			wantErr: true,
		},
		{
			name:    "data part without payload",
			part:    Part{Type: PartTypeData},
			wantErr: true,
		},
		{
			name:    "data part with text content",
			part:    Part{Type: PartTypeData, Data: map[string]any{"k": "v"}, Text: "x"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.part.Validate()
			if tt.wantErr && err == nil {
				t.Error("Expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}

func TestMessageValidate(t *testing.T) {
	valid := NewTextMessage(RoleUser, "hello")
	if err := valid.Validate(); err != nil {
		t.Errorf("Expected valid message, got %v", err)
	}

	noParts := Message{Role: RoleUser}
	if err := noParts.Validate(); err == nil {
		t.Error("Expected error for message without parts")
	}

	badRole := Message{Role: "system", Parts: []Part{NewTextPart("x")}}
	if err := badRole.Validate(); err == nil {
		t.Error("Expected error for invalid role")
	}

	badPart := Message{Role: RoleAgent, Parts: []Part{{Type: "bogus"}}}
	if err := badPart.Validate(); err == nil {
		t.Error("Expected error for invalid part")
	}
}

func TestTextContent(t *testing.T) {
	msg := Message{
		Role: RoleUser,
		Parts: []Part{
			NewTextPart("hello"),
			NewDataPart(map[string]any{"k": "v"}),
			NewTextPart("world"),
		},
	}
	if got := TextContent(msg); got != "hello world" {
		t.Errorf("Expected %q, got %q", "hello world", got)
	}

	empty := Message{Role: RoleUser, Parts: []Part{NewDataPart(map[string]any{"k": "v"})}}
	if got := TextContent(empty); got != "" {
		t.Errorf("Expected empty text content, got %q", got)
	}
}
