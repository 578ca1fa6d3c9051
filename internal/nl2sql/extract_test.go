package nl2sql

import "testing"

func TestExtractSQL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "sql block with surrounding prose",
			raw:  "We need the policy table.\n```sql\nSELECT * FROM policy;\n```\nThat is all.",
			want: "SELECT * FROM policy;",
		},
		{
			name: "sql block wins over earlier generic block",
			raw:  "```text\nnotes\n```\n```sql\nSELECT 1\n```",
			want: "SELECT 1",
		},
		{
			name: "upper case tag",
			raw:  "```SQL\nSELECT 2\n```",
			want: "SELECT 2",
		},
		{
			name: "first of several sql blocks",
			raw:  "```sql\nSELECT 1\n```\n```sql\nSELECT 2\n```",
			want: "SELECT 1",
		},
		{
			name: "generic block",
			raw:  "answer:\n```\n  SELECT a FROM b  \n```",
			want: "SELECT a FROM b",
		},
		{
			name: "generic block keeps non sql tag line",
			raw:  "```mysql\nSELECT 3\n```",
			want: "mysql\nSELECT 3",
		},
		{
			name: "no fence returns raw unchanged",
			raw:  "  SELECT 4  \n",
			want: "  SELECT 4  \n",
		},
		{
			name: "unterminated fence returns raw unchanged",
			raw:  "```sql\nSELECT 5",
			want: "```sql\nSELECT 5",
		},
		{
			name: "empty input",
			raw:  "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractSQL(tt.raw); got != tt.want {
				t.Fatalf("ExtractSQL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractSQLIsIdempotentOnExtractedText(t *testing.T) {
	inputs := []string{
		"```sql\nSELECT id, name\nFROM customers\nWHERE age > 30;\n```",
		"```\nSELECT 1\n```",
		"plain text without fences",
	}
	for _, raw := range inputs {
		once := ExtractSQL(raw)
		if twice := ExtractSQL(once); twice != once {
			t.Fatalf("ExtractSQL(ExtractSQL(%q)) = %q, want %q", raw, twice, once)
		}
	}
}
