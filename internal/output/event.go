package output

import "reposcope/internal/engine"

// Event is a lifecycle record for NDJSON streaming output.
//
// In NDJSON mode, sinks emit Events (one JSON object per line), including:
// - run.started
// - request.started
// - answer
// - request.failed
// - run.finished
//
// JSON and YAML modes remain an aggregate of engine.Answer values.
type Event struct {
	Type     string         `json:"type" yaml:"type"`
	Repo     string         `json:"repo,omitempty" yaml:"repo,omitempty"`
	Question string         `json:"question,omitempty" yaml:"question,omitempty"`
	Answer   *engine.Answer `json:"answer,omitempty" yaml:"answer,omitempty"`
	Error    string         `json:"error,omitempty" yaml:"error,omitempty"`
	Requests int            `json:"requests,omitempty" yaml:"requests,omitempty"`
	ExitCode int            `json:"exit_code,omitempty" yaml:"exit_code,omitempty"`
}

func eventFromAnswer(a *engine.Answer) Event {
	return Event{Type: "answer", Repo: a.Repo, Question: a.Question, Answer: a}
}

// asAnswer accepts both value and pointer answers.
func asAnswer(v any) (*engine.Answer, bool) {
	switch t := v.(type) {
	case *engine.Answer:
		return t, t != nil
	case engine.Answer:
		return &t, true
	}
	return nil, false
}
