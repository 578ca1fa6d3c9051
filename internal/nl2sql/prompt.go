package nl2sql

import (
	"errors"
	"fmt"
	"strings"
	"text/template"
)

var ErrEmptyQuestion = errors.New("question is required")

const fence = "```"

const hostedSystemPrompt = "I am writing SQL. The tables and columns of the database are listed below. " +
	"Think about which tables and columns this SQL needs, then write the corresponding SQL. " +
	"If it takes several queries, try to merge them into one. Write the SQL in a " + fence + "sql block."

const localSystemPrompt = "You are a professional SQL assistant. " +
	"Generate an accurate SQL query from the user's question and the database table structure."

var (
	turboUserTemplate = template.Must(template.New("turbo").Parse(`{{.TableDescription}}
=====
The SQL I want to write: {{.Question}}
Think about which tables and columns this SQL needs, then write the corresponding SQL.
`))

	coderUserTemplate = template.Must(template.New("coder").Parse(`-- language: SQL
### Question: {{.Question}}
### Input: {{.TableDescription}}
### Response:
Here is the SQL query I have generated to answer the question ` + "`{{.Question}}`" + `:
{{.Fence}}sql
`))

	localUserTemplate = template.Must(template.New("local").Parse(`Database tables:
{{.TableDescription}}

User question: {{.Question}}

Generate the matching SQL query and wrap the code in a {{.Fence}}sql block.`))
)

type promptData struct {
	Question         string
	TableDescription string
	Fence            string
}

// BuildMessages renders the system and user messages for a variant. The
// table description is embedded as given, empty or not.
func BuildMessages(variant Variant, question, tableDescription string) ([]Message, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}

	system := hostedSystemPrompt
	var tmpl *template.Template
	switch variant {
	case VariantTurbo:
		tmpl = turboUserTemplate
	case VariantCoder:
		tmpl = coderUserTemplate
	case VariantLocal:
		system = localSystemPrompt
		tmpl = localUserTemplate
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, variant)
	}

	var user strings.Builder
	data := promptData{Question: question, TableDescription: tableDescription, Fence: fence}
	if err := tmpl.Execute(&user, data); err != nil {
		return nil, fmt.Errorf("render %s prompt: %w", variant, err)
	}
	return []Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: user.String()},
	}, nil
}
