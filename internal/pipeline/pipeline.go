package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ashveil/jobscout/internal/task"
)

// Config holds the external API settings the pipeline depends on.
type Config struct {
	Endpoint     string
	APIKey       string
	Model        string
	TavilyAPIKey string
}

// Reporter receives progress events while the crew runs.
type Reporter interface {
	Report(eventType string, data map[string]any)
}

// Completer produces a chat completion for a system+user prompt pair.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Searcher retrieves job market data for a query.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// Crew is the staged job-market analysis pipeline: research, analysis,
// comparison, reporting and review run sequentially, each stage consuming
// the output of the ones before it.
type Crew struct {
	params task.Params
	rep    Reporter
	llm    Completer
	search Searcher
	logger *zap.Logger
}

// NewCrew builds a pipeline for one submission.
func NewCrew(cfg Config, params task.Params, rep Reporter, logger *zap.Logger) *Crew {
	return &Crew{
		params: params,
		rep:    rep,
		llm:    NewLLMClient(cfg.Endpoint, cfg.APIKey, cfg.Model),
		search: NewTavilyClient(cfg.TavilyAPIKey),
		logger: logger,
	}
}

// stage is one unit of crew work bound to an agent role.
type stage struct {
	name        string
	agent       string
	searchQuery string
	system      string
	prompt      string
}

// Run executes every stage in order and returns the reviewed report.
func (c *Crew) Run(ctx context.Context) (string, error) {
	p := c.params
	location := fmt.Sprintf("%s, %s", p.City, p.Country)

	stages := []stage{
		{
			name:        "Research Current Market",
			agent:       "Job Market Researcher",
			searchQuery: fmt.Sprintf("current %s job openings in %s", p.JobRole, location),
			system: "You are an expert labor market researcher. Extract and validate " +
				"job market statistics from the provided sources only.",
			prompt: fmt.Sprintf("Summarize the current job market for %s in %s: number of "+
				"active openings, experience-level distribution, employment types, and "+
				"primary hiring industries. Cite source URLs.", p.JobRole, location),
		},
		{
			name:        "Research Historical Trends",
			agent:       "Job Market Researcher",
			searchQuery: fmt.Sprintf("%s job market trend past year %s", p.JobRole, location),
			system: "You are an expert labor market researcher focused on historical " +
				"employment trends.",
			prompt: fmt.Sprintf("Describe how openings for %s in %s changed over the last "+
				"6 and 12 months, with percentage changes and events that moved the market.",
				p.JobRole, location),
		},
		{
			name:  "Analyze Market Dynamics",
			agent: "Data Analyst",
			system: "You are a statistical analyst specializing in employment data. Base " +
				"every conclusion on the research provided.",
			prompt: fmt.Sprintf("From the research above, analyze market dynamics for %s in "+
				"%s: growth rate, seasonality, competitiveness, hiring velocity, and overall "+
				"outlook.", p.JobRole, p.City),
		},
		{
			name:  "Compare Cities",
			agent: "City Comparison Specialist",
			system: "You are an economic geographer comparing regional job markets within " +
				"one country.",
			prompt: fmt.Sprintf("Compare the %s market in %s against three other major "+
				"cities in %s (one stronger, one comparable, one weaker): openings, salary "+
				"ranges, growth, and a recommended city.", p.JobRole, p.City, p.Country),
		},
		{
			name:  "Compile Report",
			agent: "Job Market Reporter",
			system: "You are a business reporter. Produce a well-structured markdown report " +
				"with clear headings and data tables.",
			prompt: c.compilePrompt(location),
		},
		{
			name:  "Review Report",
			agent: "Quality Assurance Editor",
			system: "You are a detail-oriented editor with a background in labor economics. " +
				"Return the polished final report only.",
			prompt: "Review the report above: verify statistics and sources, tighten the " +
				"prose, and improve readability for a non-technical audience.",
		},
	}

	var transcript strings.Builder
	var output string
	for _, st := range stages {
		c.emit(task.EventTaskStatus, map[string]any{"task": st.name, "status": "started"})

		user := st.prompt
		if st.searchQuery != "" {
			digest, err := c.search.Search(ctx, st.searchQuery)
			if err != nil {
				return "", fmt.Errorf("stage %q: %w", st.name, err)
			}
			user = "Search results:\n" + digest + "\n\n" + user
		}
		if transcript.Len() > 0 {
			user = "Findings so far:\n" + transcript.String() + "\n\n" + user
		}

		out, err := c.llm.Complete(ctx, st.system, user)
		if err != nil {
			return "", fmt.Errorf("stage %q: %w", st.name, err)
		}

		c.emit(task.EventAgentAction, map[string]any{
			"agent": st.agent,
			"task":  st.name,
			"step":  snippet(out),
		})
		c.emit(task.EventTaskStatus, map[string]any{"task": st.name, "status": "completed"})

		fmt.Fprintf(&transcript, "## %s\n%s\n\n", st.name, out)
		output = out
	}

	return output, nil
}

// compilePrompt assembles the report instructions, honoring the
// submission's optional sections.
func (c *Crew) compilePrompt(location string) string {
	var extras []string
	if c.params.IncludeSkills {
		extras = append(extras, "- In-demand skills and qualifications")
	}
	if c.params.IncludeSalaries {
		extras = append(extras, "- Detailed salary ranges by experience level")
	}
	if c.params.IncludeCompanies {
		extras = append(extras, "- Top companies hiring for this role")
	}
	if c.params.IncludeTrends {
		extras = append(extras, "- Emerging trends and future predictions")
	}
	additional := "None"
	if len(extras) > 0 {
		additional = strings.Join(extras, "\n")
	}

	return fmt.Sprintf(`Compile a comprehensive job market report for %s in %s from the findings above.

Structure:
1. Executive Summary
2. Current Market Snapshot
3. Historical Trends
4. City Comparison
5. Future Outlook
6. Actionable Recommendations

Additional sections requested:
%s`, c.params.JobRole, location, additional)
}

func (c *Crew) emit(eventType string, data map[string]any) {
	if c.rep != nil {
		c.rep.Report(eventType, data)
	}
}

// snippet trims stage output for event payloads.
func snippet(s string) string {
	const max = 400
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
