package forecast

import (
	"fmt"
	"strings"
	"time"

	"github.com/chris8332558/chris-metac-bot-template/internal/metaculus"
)

const binaryPromptTemplate = `You are a professional forecaster interviewing for a job.

Your interview question is:
%s

Question background:
%s

This question's outcome will be determined by the specific criteria below. These criteria have not yet been satisfied:
%s

%s

Your research assistant says:
%s

Today is %s.

Before answering you write:
(a) The time left until the outcome to the question is known.
(b) The status quo outcome if nothing changed.
(c) A brief description of a scenario that results in a No outcome.
(d) A brief description of a scenario that results in a Yes outcome.

You write your rationale remembering that good forecasters put extra weight on the status quo outcome since the world changes slowly most of the time.

The last thing you write is your final answer as: "Probability: ZZ%%", 0-100`

const multipleChoicePromptTemplate = `You are a professional forecaster interviewing for a job.

Your interview question is:
%s

The options are: %s

Question background:
%s

This question's outcome will be determined by the specific criteria below:
%s

%s

Your research assistant says:
%s

Today is %s.

Before answering you write:
(a) The time left until the outcome to the question is known.
(b) The status quo outcome if nothing changed.
(c) A description of a scenario that results in an unexpected outcome.

You write your rationale remembering that (1) good forecasters put extra weight on the status quo outcome since the world changes slowly most of the time, and (2) good forecasters leave some moderate probability on most options to account for unexpected outcomes.

The last thing you write is your final probabilities for the options in this order %s, one per line, as:
Option: XX%%`

const numericPromptTemplate = `You are a professional forecaster interviewing for a job.

Your interview question is:
%s

Question background:
%s

This question's outcome will be determined by the specific criteria below:
%s

%s

Units for answer: %s

Your research assistant says:
%s

Today is %s.

%s
%s

Formatting instructions:
- Please notice the units requested.
- Never use scientific notation.
- Always start with a smaller number (more negative if negative) and then increase from there.

Before answering you write:
(a) The time left until the outcome to the question is known.
(b) The outcome if nothing changed.
(c) The outcome if the current trend continued.
(d) The expectations of experts and markets.
(e) A brief description of an unexpected scenario that results in a low outcome.
(f) A brief description of an unexpected scenario that results in a high outcome.

You remind yourself that good forecasters are humble and set wide 90/10 confidence intervals to account for unknown unknowns.

The last thing you write is your final answer as:
"
Percentile 10: XX
Percentile 20: XX
Percentile 40: XX
Percentile 60: XX
Percentile 80: XX
Percentile 90: XX
"`

// promptFor builds the forecast prompt whose requested answer format
// matches what the extraction engine parses for the question's type.
func promptFor(q *metaculus.Question, researchText string) (string, error) {
	today := time.Now().UTC().Format("2006-01-02")
	switch q.Type {
	case metaculus.TypeBinary:
		return fmt.Sprintf(binaryPromptTemplate,
			q.Title, q.Description, q.ResolutionCriteria, finePrintSection(q), researchText, today), nil

	case metaculus.TypeMultipleChoice:
		if len(q.Options) == 0 {
			return "", fmt.Errorf("forecast: question %d has no options", q.ID)
		}
		opts := strings.Join(q.Options, ", ")
		return fmt.Sprintf(multipleChoicePromptTemplate,
			q.Title, opts, q.Description, q.ResolutionCriteria, finePrintSection(q), researchText, today, opts), nil

	case metaculus.TypeNumeric, metaculus.TypeDiscrete:
		unit := q.Unit
		if unit == "" {
			unit = "not stated (infer from the question)"
		}
		return fmt.Sprintf(numericPromptTemplate,
			q.Title, q.Description, q.ResolutionCriteria, finePrintSection(q), unit, researchText, today,
			lowerBoundMessage(q), upperBoundMessage(q)), nil

	default:
		return "", fmt.Errorf("forecast: unsupported question type %q", q.Type)
	}
}

func finePrintSection(q *metaculus.Question) string {
	if q.FinePrint == "" {
		return ""
	}
	return "Fine print:\n" + q.FinePrint
}

func lowerBoundMessage(q *metaculus.Question) string {
	if q.Scaling.RangeMin == nil {
		return ""
	}
	if q.OpenLowerBound {
		return fmt.Sprintf("The question creator thinks the number is likely not lower than %v.", *q.Scaling.RangeMin)
	}
	return fmt.Sprintf("The outcome can not be lower than %v.", *q.Scaling.RangeMin)
}

func upperBoundMessage(q *metaculus.Question) string {
	if q.Scaling.RangeMax == nil {
		return ""
	}
	if q.OpenUpperBound {
		return fmt.Sprintf("The question creator thinks the number is likely not higher than %v.", *q.Scaling.RangeMax)
	}
	return fmt.Sprintf("The outcome can not be higher than %v.", *q.Scaling.RangeMax)
}
