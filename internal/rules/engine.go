package rules

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"time"

	"example.com/uf2forge/internal/uf2"
)

type Severity string

const (
	ERROR Severity = "ERROR"
	WARN  Severity = "WARN"
	INFO  Severity = "INFO"
)

// Rule binds an invariant check to an identifier and severity. CheckFunc
// names a registered check; unknown names surface as WARN diagnostics
// rather than failing the run.
type Rule struct {
	RuleId    string   `json:"ruleId"`
	Name      string   `json:"name,omitempty"`
	Severity  Severity `json:"severity"`
	CheckFunc string   `json:"checkFunction"`
	Refs      []string `json:"refs,omitempty"`
	Message   string   `json:"message,omitempty"`
}

// RulePack is a named set of rules bound to a device preset.
type RulePack struct {
	RulePackId string `json:"rulePackId"`
	Version    string `json:"version"`
	Device     string `json:"device"`
	Rules      []Rule `json:"rules"`
}

// Diagnostic is one finding produced by a rule evaluation.
type Diagnostic struct {
	Ts         time.Time `json:"ts"`
	File       string    `json:"file,omitempty"`
	BlockIndex int       `json:"blockIndex,omitempty"`
	Offset     string    `json:"offset,omitempty"`
	RuleId     string    `json:"ruleId"`
	Severity   Severity  `json:"severity"`
	Message    string    `json:"message"`
	Refs       []string  `json:"refs,omitempty"`
}

// AcceptanceReport summarizes an evaluation. Pass is true only when no
// ERROR-severity findings were recorded.
type AcceptanceReport struct {
	Summary struct {
		Total    int  `json:"total"`
		Errors   int  `json:"errors"`
		Warnings int  `json:"warnings"`
		Pass     bool `json:"pass"`
	} `json:"summary"`
	Findings []Diagnostic `json:"findings,omitempty"`
}

// Context carries the image under evaluation. Image bytes are parsed
// once and shared by every rule.
type Context struct {
	InputFile string
	Image     []byte
	Layout    uf2.Layout

	Container *uf2.Container
	ParseErr  error
	parsed    bool
}

// EnsureContainer parses the image bytes once. A parse failure is
// recorded rather than returned so structural rules can report it.
func (ctx *Context) EnsureContainer() {
	if ctx == nil || ctx.parsed {
		return
	}
	ctx.parsed = true
	c, err := uf2.ParseContainer(ctx.Image)
	if err != nil {
		ctx.ParseErr = err
		return
	}
	ctx.Container = &c
}

// CheckFunc evaluates one rule against the context and returns its
// findings.
type CheckFunc func(ctx *Context, rule Rule) []Diagnostic

// Engine evaluates a rule pack against a context.
type Engine struct {
	rulePack    RulePack
	registry    map[string]CheckFunc
	diagnostics []Diagnostic
}

func NewEngine(rp RulePack) *Engine {
	return &Engine{
		rulePack: rp,
		registry: make(map[string]CheckFunc),
	}
}

func (e *Engine) Register(name string, f CheckFunc) {
	e.registry[name] = f
}

// Eval runs every rule in the pack and collects diagnostics.
func (e *Engine) Eval(ctx *Context) ([]Diagnostic, error) {
	if ctx == nil {
		return nil, errors.New("nil context")
	}
	ctx.EnsureContainer()
	var diags []Diagnostic
	for _, r := range e.rulePack.Rules {
		fn, ok := e.registry[r.CheckFunc]
		if !ok {
			diags = append(diags, Diagnostic{
				Ts: time.Now(), File: ctx.InputFile, RuleId: r.RuleId, Severity: WARN,
				Message: "no check function registered for rule", Refs: r.Refs,
			})
			continue
		}
		diags = append(diags, fn(ctx, r)...)
	}
	e.diagnostics = diags
	return diags, nil
}

// WriteDiagnosticsNDJSON writes one JSON object per finding.
func (e *Engine) WriteDiagnosticsNDJSON(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	defer w.Flush()
	for _, d := range e.diagnostics {
		b, _ := json.Marshal(d)
		w.Write(b)
		w.WriteString("\n")
	}
	return nil
}

// MakeAcceptance summarizes the latest evaluation.
func (e *Engine) MakeAcceptance() AcceptanceReport {
	var rep AcceptanceReport
	var errs, warns int
	for _, d := range e.diagnostics {
		switch d.Severity {
		case ERROR:
			errs++
		case WARN:
			warns++
		}
	}
	rep.Summary.Total = len(e.diagnostics)
	rep.Summary.Errors = errs
	rep.Summary.Warnings = warns
	rep.Summary.Pass = errs == 0
	rep.Findings = e.diagnostics
	return rep
}

// LoadRulePack reads a rule pack from a JSON file.
func LoadRulePack(path string) (RulePack, error) {
	var rp RulePack
	b, err := os.ReadFile(path)
	if err != nil {
		return rp, err
	}
	err = json.Unmarshal(b, &rp)
	return rp, err
}
