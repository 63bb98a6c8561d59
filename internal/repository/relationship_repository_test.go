package repository

import (
	"strings"
	"testing"

	"github.com/quizroom/quizroom-backend/internal/model"
)

func TestContainsPatternEscapesWildcards(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"phys", `%phys%`},
		{"_", `%\_%`},
		{"%", `%\%%`},
		{`a\b`, `%a\\b%`},
		{"100%_done", `%100\%\_done%`},
	}

	for _, tt := range tests {
		if got := containsPattern(tt.in); got != tt.want {
			t.Fatalf("containsPattern(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRelationshipWhere(t *testing.T) {
	subject := int64(4)
	where, args := relationshipWhere(model.RelationshipFilter{SubjectID: &subject, Search: "_"})

	if len(args) != 2 || args[0] != subject || args[1] != `%\_%` {
		t.Fatalf("args = %v", args)
	}
	if !strings.Contains(where, "st.subject_id = $1") {
		t.Fatalf("where = %q, want subject placeholder $1", where)
	}
	if !strings.Contains(where, `s.name ILIKE $2 ESCAPE '\'`) || !strings.Contains(where, `t.tag_text ILIKE $2 ESCAPE '\'`) {
		t.Fatalf("where = %q, want escaped ILIKE on $2", where)
	}

	where, args = relationshipWhere(model.RelationshipFilter{})
	if where != " WHERE 1=1" || len(args) != 0 {
		t.Fatalf("empty filter: where=%q args=%v", where, args)
	}
}
