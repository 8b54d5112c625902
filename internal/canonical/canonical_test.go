package canonical

import (
	"reflect"
	"strings"
	"testing"

	"github.com/stemsi/examvault/internal/model"
)

func sampleSet() model.AnswerSet {
	return model.AnswerSet{
		3: {QuestionID: 3, Answer: model.AnswerValue{Text: "  photosynthesis "}, TimeSpent: 40},
		1: {QuestionID: 1, Answer: model.AnswerValue{Choices: []string{"C", "A"}}, TimeSpent: 12},
		2: {QuestionID: 2, Answer: model.AnswerValue{Text: "B"}, TimeSpent: 7},
	}
}

func TestMarshalOrdersByQuestionID(t *testing.T) {
	data, err := Marshal(sampleSet())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	s := string(data)
	i1 := strings.Index(s, `"q":1`)
	i2 := strings.Index(s, `"q":2`)
	i3 := strings.Index(s, `"q":3`)
	if i1 < 0 || i2 < 0 || i3 < 0 {
		t.Fatalf("missing entries in %s", s)
	}
	if !(i1 < i2 && i2 < i3) {
		t.Fatalf("entries not ordered by question id: %s", s)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	a, _ := Marshal(sampleSet())
	b, _ := Marshal(sampleSet())
	if string(a) != string(b) {
		t.Fatalf("two marshals differ:\n%s\n%s", a, b)
	}
}

func TestDigestIgnoresChoiceOrderAndWhitespace(t *testing.T) {
	base := sampleSet()

	variant := model.AnswerSet{
		3: {QuestionID: 3, Answer: model.AnswerValue{Text: "photosynthesis"}, TimeSpent: 40},
		1: {QuestionID: 1, Answer: model.AnswerValue{Choices: []string{"A", "C"}}, TimeSpent: 12},
		2: {QuestionID: 2, Answer: model.AnswerValue{Text: "B"}, TimeSpent: 7},
	}

	d1, err := Digest(base)
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	d2, err := Digest(variant)
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if d1 != d2 {
		t.Fatalf("digests differ for semantically equal sets: %s vs %s", d1, d2)
	}
	if len(d1) != 64 {
		t.Fatalf("digest length = %d, want 64 hex chars", len(d1))
	}
}

func TestDigestChangesWithContent(t *testing.T) {
	base := sampleSet()
	d1, _ := Digest(base)

	changed := sampleSet()
	changed[2] = model.AnswerSnapshot{QuestionID: 2, Answer: model.AnswerValue{Text: "D"}, TimeSpent: 7}
	d2, _ := Digest(changed)

	if d1 == d2 {
		t.Fatal("digest unchanged after answer edit")
	}
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	in := model.AnswerValue{Choices: []string{"C", "A", "B"}}
	_ = Normalize(in)
	if !reflect.DeepEqual(in.Choices, []string{"C", "A", "B"}) {
		t.Fatalf("Normalize mutated input choices: %v", in.Choices)
	}
}

func TestFillGaps(t *testing.T) {
	set := model.AnswerSet{
		1: {QuestionID: 1, Answer: model.AnswerValue{Text: "A"}},
		3: {QuestionID: 3, Answer: model.AnswerValue{Text: "C"}},
	}

	filled, gaps := FillGaps(set, []int{1, 2, 3, 4})
	if len(filled) != 4 {
		t.Fatalf("filled size = %d, want 4", len(filled))
	}
	if !reflect.DeepEqual(gaps, []int{2, 4}) {
		t.Fatalf("gaps = %v, want [2 4]", gaps)
	}
	if !filled[2].Answer.IsZero() {
		t.Fatal("gap entry is not the zero answer")
	}
	if filled[1].Answer.Text != "A" {
		t.Fatal("existing answer lost during fill")
	}

	// No gaps at all.
	_, gaps = FillGaps(filled, []int{1, 2, 3, 4})
	if len(gaps) != 0 {
		t.Fatalf("gaps = %v, want none", gaps)
	}
}
