package lumen

import "encoding/json"

// Metadata describes the plugin as the host sees it, delivered with the
// initialize request.
type Metadata struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Author          string   `json:"author"`
	Version         string   `json:"version"`
	Description     string   `json:"description"`
	Website         string   `json:"website"`
	Language        string   `json:"language"`
	Disabled        bool     `json:"disabled"`
	ExecuteFilePath string   `json:"executeFilePath"`
	Directory       string   `json:"pluginDirectory"`
	IcoPath         string   `json:"icoPath"`
	ActionKeyword   string   `json:"actionKeyword"`
	ActionKeywords  []string `json:"actionKeywords"`
}

// initializeParams is the wire shape of the initialize request's first
// parameter.
type initializeParams struct {
	CurrentPluginMetadata json.RawMessage `json:"currentPluginMetadata"`
}
