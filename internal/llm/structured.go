// Package llm - structured.go builds prompts that ask the model for a fixed JSON shape.
package llm

import (
	"fmt"
	"strings"
)

// OutputSchema defines the JSON object the model must return.
type OutputSchema struct {
	Name        string        // Schema name (e.g., "MatchVerdict")
	Description string        // Preamble describing the task
	Fields      []SchemaField // Expected output fields
}

// SchemaField defines a single field in the structured output.
type SchemaField struct {
	Name        string // JSON field name
	Type        string // Type hint: "string", "integer", "[\"string\"]"
	Description string // Description for the model
	Required    bool   // Whether this field is required
}

// BuildStructuredPrompt constructs the prompt from schema and input text.
func BuildStructuredPrompt(schema OutputSchema, inputText string) string {
	var sb strings.Builder

	sb.WriteString(schema.Description)
	sb.WriteString("\n\n")

	sb.WriteString("Return ONLY valid JSON matching this exact structure:\n{\n")
	for i, field := range schema.Fields {
		typeHint := field.Type
		if typeHint == "" {
			typeHint = "string"
		}
		requiredHint := ""
		if field.Required {
			requiredHint = " (required)"
		}
		sb.WriteString(fmt.Sprintf("  \"%s\": %s%s", field.Name, typeHint, requiredHint))
		if field.Description != "" {
			sb.WriteString(fmt.Sprintf(" // %s", field.Description))
		}
		if i < len(schema.Fields)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}\n\n")

	sb.WriteString("IMPORTANT:\n")
	sb.WriteString("- Base every statement on the input, do not invent facts about the jobs.\n")
	sb.WriteString("- Return ONLY the JSON object, no markdown, no explanation, no code blocks.\n\n")

	sb.WriteString("Input:\n\"\"\"\n")
	sb.WriteString(inputText)
	sb.WriteString("\n\"\"\"\n")

	return sb.String()
}

// MatchVerdictSchema returns the output schema for selecting one reference job among
// validated candidates. description is the rendered task preamble.
func MatchVerdictSchema(description string) OutputSchema {
	return OutputSchema{
		Name:        "MatchVerdict",
		Description: description,
		Fields: []SchemaField{
			{
				Name:        "selected_index",
				Type:        "integer",
				Description: "0-based index of the chosen candidate in the candidate list",
				Required:    true,
			},
			{
				Name:        "confidence",
				Type:        "number",
				Description: "Your confidence in the selection, between 0.0 and 1.0",
				Required:    true,
			},
			{
				Name:        "reasoning",
				Type:        "\"string\"",
				Description: "Why this candidate is the best fit",
				Required:    true,
			},
			{
				Name:        "similarities",
				Type:        "[\"string\"]",
				Description: "Concrete points where the request and the chosen job agree",
				Required:    false,
			},
			{
				Name:        "differences",
				Type:        "[\"string\"]",
				Description: "Concrete points where the request and the chosen job differ",
				Required:    false,
			},
		},
	}
}
