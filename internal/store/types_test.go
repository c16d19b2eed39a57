package store

import "testing"

func TestKindValid(t *testing.T) {
	for _, k := range Kinds {
		if !k.Valid() {
			t.Errorf("Kind(%q).Valid() = false, want true", k)
		}
	}
	for _, k := range []Kind{"", "documents", "NEWS"} {
		if k.Valid() {
			t.Errorf("Kind(%q).Valid() = true, want false", k)
		}
	}
}

func TestKindTable(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindNews, "news_items"},
		{KindSocial, "social_posts"},
		{KindGlossary, "glossary_terms"},
		{KindAggregator, "aggregator_articles"},
		{Kind("bogus"), ""},
	}

	for _, tt := range tests {
		if got := tt.kind.table(); got != tt.want {
			t.Errorf("Kind(%q).table() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestKindEmbedTextExpr(t *testing.T) {
	if got := KindSocial.embedTextExpr(); got != "content" {
		t.Errorf("social embed text expr = %q", got)
	}
	if got := KindGlossary.embedTextExpr(); got != "term || E'\\n' || definition" {
		t.Errorf("glossary embed text expr = %q", got)
	}
	for _, k := range []Kind{KindNews, KindAggregator} {
		if got := k.embedTextExpr(); got != "title || E'\\n' || content" {
			t.Errorf("%s embed text expr = %q", k, got)
		}
	}
}
