package nl2sql

import (
	"errors"
	"strings"
	"testing"
)

const testTables = "policy(id, holder, premium)\nclaim(id, policy_id, amount)"

func TestBuildMessagesTurbo(t *testing.T) {
	messages, err := BuildMessages(VariantTurbo, "total premium per holder", testTables)
	if err != nil {
		t.Fatalf("BuildMessages() error = %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("len(messages) = %d", len(messages))
	}
	if messages[0].Role != RoleSystem || messages[1].Role != RoleUser {
		t.Fatalf("roles = %q/%q", messages[0].Role, messages[1].Role)
	}
	if !strings.Contains(messages[0].Content, "```sql") {
		t.Fatalf("system prompt should request a sql block: %q", messages[0].Content)
	}
	user := messages[1].Content
	if !strings.HasPrefix(user, testTables+"\n=====\n") {
		t.Fatalf("user prompt should start with the table description: %q", user)
	}
	if !strings.Contains(user, "total premium per holder") {
		t.Fatalf("user prompt missing question: %q", user)
	}
}

func TestBuildMessagesCoderSeedsOpenFence(t *testing.T) {
	messages, err := BuildMessages(VariantCoder, "count claims", testTables)
	if err != nil {
		t.Fatalf("BuildMessages() error = %v", err)
	}
	user := messages[1].Content
	for _, want := range []string{"-- language: SQL", "### Question: count claims", "### Input: " + testTables, "### Response:", "`count claims`"} {
		if !strings.Contains(user, want) {
			t.Fatalf("coder prompt missing %q:\n%s", want, user)
		}
	}
	if !strings.HasSuffix(user, "```sql\n") {
		t.Fatalf("coder prompt should end with an open sql fence: %q", user)
	}
}

func TestBuildMessagesLocal(t *testing.T) {
	messages, err := BuildMessages(VariantLocal, "list holders", testTables)
	if err != nil {
		t.Fatalf("BuildMessages() error = %v", err)
	}
	if !strings.Contains(messages[0].Content, "professional SQL assistant") {
		t.Fatalf("system prompt = %q", messages[0].Content)
	}
	if !strings.Contains(messages[1].Content, "User question: list holders") {
		t.Fatalf("user prompt = %q", messages[1].Content)
	}
}

func TestBuildMessagesPassesEmptyDescriptionThrough(t *testing.T) {
	messages, err := BuildMessages(VariantTurbo, "anything", "")
	if err != nil {
		t.Fatalf("BuildMessages() error = %v", err)
	}
	if !strings.HasPrefix(messages[1].Content, "\n=====\n") {
		t.Fatalf("user prompt = %q", messages[1].Content)
	}
}

func TestBuildMessagesRejectsEmptyQuestion(t *testing.T) {
	for _, question := range []string{"", "   \n\t"} {
		_, err := BuildMessages(VariantTurbo, question, testTables)
		if !errors.Is(err, ErrEmptyQuestion) {
			t.Fatalf("BuildMessages(%q) error = %v, want ErrEmptyQuestion", question, err)
		}
	}
}

func TestBuildMessagesRejectsUnknownVariant(t *testing.T) {
	_, err := BuildMessages(Variant("gpt"), "q", testTables)
	if !errors.Is(err, ErrUnknownVariant) {
		t.Fatalf("BuildMessages() error = %v, want ErrUnknownVariant", err)
	}
}

func TestParseVariant(t *testing.T) {
	for _, name := range []string{"qwen_turbo", " QWEN_CODER ", "local_qwen"} {
		if _, err := ParseVariant(name); err != nil {
			t.Fatalf("ParseVariant(%q) error = %v", name, err)
		}
	}
	if _, err := ParseVariant("qwen_max"); !errors.Is(err, ErrUnknownVariant) {
		t.Fatalf("ParseVariant() error = %v, want ErrUnknownVariant", err)
	}
}

func TestResponseContent(t *testing.T) {
	content, err := NewResponse("```sql\nSELECT 1\n```").Content()
	if err != nil {
		t.Fatalf("Content() error = %v", err)
	}
	if content != "```sql\nSELECT 1\n```" {
		t.Fatalf("Content() = %q", content)
	}
	if _, err := (Response{}).Content(); !errors.Is(err, ErrEmptyChoices) {
		t.Fatalf("Content() error = %v, want ErrEmptyChoices", err)
	}
}
