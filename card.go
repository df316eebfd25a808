// Copyright 2025 The Agentwire Authors
// SPDX-License-Identifier: Apache-2.0

package agentwire

import "fmt"

// AgentCapabilities declares the protocol features an agent supports.
type AgentCapabilities struct {
	Streaming              bool `json:"streaming"`
	PushNotifications      bool `json:"pushNotifications"`
	StateTransitionHistory bool `json:"stateTransitionHistory"`
}

// AgentSkill describes one named capability of an agent, with example
// utterances a client can show to users.
type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitzero"`
	Tags        []string `json:"tags,omitzero"`
	Examples    []string `json:"examples,omitzero"`
	InputModes  []string `json:"inputModes,omitzero"`
	OutputModes []string `json:"outputModes,omitzero"`
}

// AgentProvider identifies the organization operating an agent.
type AgentProvider struct {
	Organization string `json:"organization"`
	URL          string `json:"url,omitzero"`
}

// AgentCard is the discovery document describing an agent's identity,
// capabilities and skills. Servers publish it at /.well-known/agent.json and
// clients fetch it once per session.
type AgentCard struct {
	Name               string            `json:"name"`
	Description        string            `json:"description,omitzero"`
	URL                string            `json:"url"`
	Version            string            `json:"version"`
	Capabilities       AgentCapabilities `json:"capabilities"`
	Skills             []AgentSkill      `json:"skills"`
	DefaultInputModes  []string          `json:"defaultInputModes,omitzero"`
	DefaultOutputModes []string          `json:"defaultOutputModes,omitzero"`
	Provider           *AgentProvider    `json:"provider,omitzero"`
	DocumentationURL   string            `json:"documentationUrl,omitzero"`
}

// Validate ensures the AgentCard is valid.
func (c AgentCard) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("agent card name cannot be empty")
	}
	if c.URL == "" {
		return fmt.Errorf("agent card URL cannot be empty")
	}
	if c.Version == "" {
		return fmt.Errorf("agent card version cannot be empty")
	}
	for i, skill := range c.Skills {
		if skill.ID == "" {
			return fmt.Errorf("agent skill at index %d requires an id", i)
		}
		if skill.Name == "" {
			return fmt.Errorf("agent skill at index %d requires a name", i)
		}
	}
	return nil
}
