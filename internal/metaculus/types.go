package metaculus

import "strings"

// QuestionType enumerates the question kinds the bot can forecast.
type QuestionType string

const (
	TypeBinary         QuestionType = "binary"
	TypeNumeric        QuestionType = "numeric"
	TypeDiscrete       QuestionType = "discrete"
	TypeMultipleChoice QuestionType = "multiple_choice"
)

// Scaling describes the numeric range a continuous question maps its
// CDF onto. ZeroPoint, when set, selects logarithmic scaling.
type Scaling struct {
	RangeMin  *float64 `json:"range_min"`
	RangeMax  *float64 `json:"range_max"`
	ZeroPoint *float64 `json:"zero_point"`
}

// Question is a single forecastable question as returned by the
// platform. Never mutated locally, except that Flatten stamps the
// owning post id onto each question it yields.
type Question struct {
	ID                  int64        `json:"id"`
	Title               string       `json:"title"`
	Description         string       `json:"description,omitempty"`
	ResolutionCriteria  string       `json:"resolution_criteria,omitempty"`
	FinePrint           string       `json:"fine_print,omitempty"`
	Type                QuestionType `json:"type"`
	Status              string       `json:"status,omitempty"`
	Resolution          string       `json:"resolution,omitempty"`
	Options             []string     `json:"options,omitempty"`
	Unit                string       `json:"unit,omitempty"`
	Scaling             Scaling      `json:"scaling"`
	OpenUpperBound      bool         `json:"open_upper_bound,omitempty"`
	OpenLowerBound      bool         `json:"open_lower_bound,omitempty"`
	InboundOutcomeCount int          `json:"inbound_outcome_count,omitempty"`
	PostID              int64        `json:"post_id,omitempty"`
}

// Annulled reports whether the question resolved to a non-resolving
// outcome that should be excluded from evaluation corpora.
func (q *Question) Annulled() bool {
	return strings.EqualFold(strings.TrimSpace(q.Resolution), "annulled")
}

// GroupOfQuestions bundles sub-questions under one post.
type GroupOfQuestions struct {
	Questions []Question `json:"questions"`
}

// PostKind discriminates the shapes a listing result can take.
type PostKind int

const (
	PostKindUnknown PostKind = iota
	PostKindQuestion
	PostKindGroup
)

func (k PostKind) String() string {
	switch k {
	case PostKindQuestion:
		return "question"
	case PostKindGroup:
		return "group_of_questions"
	default:
		return "unknown"
	}
}

// Post is one entry from the posts listing. At most one of Question and
// GroupOfQuestions is set; both nil marks a shape this client does not
// recognize, kept as an explicit variant rather than a fallthrough.
type Post struct {
	ID               int64             `json:"id"`
	Title            string            `json:"title,omitempty"`
	Question         *Question         `json:"question,omitempty"`
	GroupOfQuestions *GroupOfQuestions `json:"group_of_questions,omitempty"`
}

// Kind reports which variant this post is.
func (p *Post) Kind() PostKind {
	switch {
	case p.GroupOfQuestions != nil:
		return PostKindGroup
	case p.Question != nil:
		return PostKindQuestion
	default:
		return PostKindUnknown
	}
}

// Flatten expands the post into its constituent questions, stamping
// each with the owning post id. Unknown shapes yield nothing.
func (p *Post) Flatten() []Question {
	switch p.Kind() {
	case PostKindGroup:
		qs := make([]Question, len(p.GroupOfQuestions.Questions))
		copy(qs, p.GroupOfQuestions.Questions)
		for i := range qs {
			qs[i].PostID = p.ID
		}
		return qs
	case PostKindQuestion:
		q := *p.Question
		q.PostID = p.ID
		return []Question{q}
	default:
		return nil
	}
}
