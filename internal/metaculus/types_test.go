package metaculus

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestPostKindDecoding(t *testing.T) {
	raw := `{"results": [
		{"id": 1, "question": {"id": 11, "title": "single", "type": "binary"}},
		{"id": 2, "group_of_questions": {"questions": [
			{"id": 21, "title": "a", "type": "binary"},
			{"id": 22, "title": "b", "type": "binary"}
		]}},
		{"id": 3, "title": "notebook post"}
	]}`

	var page PostsPage
	if err := json.Unmarshal([]byte(raw), &page); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(page.Results) != 3 {
		t.Fatalf("got %d results", len(page.Results))
	}

	kinds := []PostKind{PostKindQuestion, PostKindGroup, PostKindUnknown}
	for i, want := range kinds {
		if got := page.Results[i].Kind(); got != want {
			t.Errorf("post %d Kind() = %v, want %v", i, got, want)
		}
	}
}

func TestFlatten(t *testing.T) {
	single := Post{ID: 7, Question: &Question{ID: 70, Title: "q"}}
	qs := single.Flatten()
	if len(qs) != 1 || qs[0].ID != 70 || qs[0].PostID != 7 {
		t.Errorf("single Flatten() = %+v", qs)
	}

	group := Post{ID: 8, GroupOfQuestions: &GroupOfQuestions{
		Questions: []Question{{ID: 81}, {ID: 82}},
	}}
	qs = group.Flatten()
	if len(qs) != 2 {
		t.Fatalf("group Flatten() returned %d questions", len(qs))
	}
	for _, q := range qs {
		if q.PostID != 8 {
			t.Errorf("question %d missing post id: %+v", q.ID, q)
		}
	}
	if group.GroupOfQuestions.Questions[0].PostID != 0 {
		t.Error("Flatten mutated the source post")
	}

	unknown := Post{ID: 9}
	if qs := unknown.Flatten(); qs != nil {
		t.Errorf("unknown Flatten() = %+v, want nil", qs)
	}
}

// Corpus files carry the scaling object for every question, binary
// ones included.
func TestQuestionJSONCarriesScaling(t *testing.T) {
	raw, err := json.Marshal(Question{ID: 1, Title: "q", Type: TypeBinary})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"scaling"`) {
		t.Errorf("scaling object missing from %s", raw)
	}
}

func TestAnnulled(t *testing.T) {
	tests := []struct {
		resolution string
		want       bool
	}{
		{"annulled", true},
		{"Annulled", true},
		{"  ANNULLED  ", true},
		{"yes", false},
		{"", false},
	}
	for _, tt := range tests {
		q := Question{Resolution: tt.resolution}
		if got := q.Annulled(); got != tt.want {
			t.Errorf("Annulled(%q) = %v, want %v", tt.resolution, got, tt.want)
		}
	}
}
