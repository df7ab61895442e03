package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/ashveil/jobscout/internal/task"
)

type fakeCompleter struct {
	calls []string
	err   error
}

func (f *fakeCompleter) Complete(_ context.Context, _, user string) (string, error) {
	f.calls = append(f.calls, user)
	if f.err != nil {
		return "", f.err
	}
	return "stage output", nil
}

type fakeSearcher struct {
	queries []string
	err     error
}

func (f *fakeSearcher) Search(_ context.Context, query string) (string, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return "", f.err
	}
	return "- Posting (https://indeed.com/x)\n  120 openings", nil
}

type recordingReporter struct {
	events []task.Event
}

func (r *recordingReporter) Report(eventType string, data map[string]any) {
	r.events = append(r.events, task.Event{Type: eventType, Data: data})
}

func testCrew(p task.Params, rep Reporter) (*Crew, *fakeCompleter, *fakeSearcher) {
	llm := &fakeCompleter{}
	search := &fakeSearcher{}
	return &Crew{
		params: p,
		rep:    rep,
		llm:    llm,
		search: search,
		logger: zap.NewNop(),
	}, llm, search
}

func TestRunExecutesAllStages(t *testing.T) {
	rep := &recordingReporter{}
	crew, llm, search := testCrew(task.Params{
		Country: "India", City: "Pune", JobRole: "Data Scientist",
	}, rep)

	out, err := crew.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != "stage output" {
		t.Errorf("expected final stage output, got %q", out)
	}
	if len(llm.calls) != 6 {
		t.Errorf("expected 6 stages, got %d", len(llm.calls))
	}
	if len(search.queries) != 2 {
		t.Errorf("expected 2 research searches, got %d", len(search.queries))
	}

	// Later stages see earlier findings.
	if !strings.Contains(llm.calls[2], "Research Current Market") {
		t.Error("expected analysis stage to receive prior research")
	}

	var started, completed int
	for _, ev := range rep.events {
		if ev.Type != task.EventTaskStatus {
			continue
		}
		switch ev.Data["status"] {
		case "started":
			started++
		case "completed":
			completed++
		}
	}
	if started != 6 || completed != 6 {
		t.Errorf("expected 6 started/completed status events, got %d/%d", started, completed)
	}
}

func TestRunStageFailureAborts(t *testing.T) {
	crew, llm, _ := testCrew(task.Params{
		Country: "India", City: "Pune", JobRole: "Data Scientist",
	}, nil)
	llm.err = errors.New("model unavailable")

	if _, err := crew.Run(context.Background()); err == nil {
		t.Fatal("expected stage failure to abort the run")
	}
	if len(llm.calls) != 1 {
		t.Errorf("expected run to stop at first failing stage, got %d calls", len(llm.calls))
	}
}

func TestCompilePromptHonorsFlags(t *testing.T) {
	crew, _, _ := testCrew(task.Params{
		Country: "India", City: "Pune", JobRole: "Data Scientist",
		IncludeSkills: true, IncludeSalaries: false,
		IncludeCompanies: true, IncludeTrends: false,
	}, nil)

	prompt := crew.compilePrompt("Pune, India")
	if !strings.Contains(prompt, "In-demand skills") {
		t.Error("expected skills section")
	}
	if strings.Contains(prompt, "salary ranges") {
		t.Error("salaries were not requested")
	}
	if !strings.Contains(prompt, "Top companies") {
		t.Error("expected companies section")
	}

	none, _, _ := testCrew(task.Params{Country: "x", City: "y", JobRole: "z"}, nil)
	if !strings.Contains(none.compilePrompt("y, x"), "None") {
		t.Error("expected None when no additional sections requested")
	}
}
