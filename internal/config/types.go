// Package config holds the immutable, fully-parsed test configuration the
// core consumes. Parsing/validation live here; everything downstream
// (scheduler, VU engine, protocol adapters) treats a *Test value as
// read-only for the lifetime of a run.
package config

import (
	"time"

	null "gopkg.in/guregu/null.v3"
)

// Test is the top-level, immutable configuration value. It is created once
// by Parse and never mutated after the scheduler starts.
type Test struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Global      Global   `yaml:"global" json:"global"`
	Load        Load     `yaml:"load" json:"load"`
	Scenarios   []Scenario `yaml:"scenarios" json:"scenarios"`
	Outputs     []string `yaml:"outputs" json:"outputs"`
	Report      *Report  `yaml:"report" json:"report,omitempty"`
	Workers     []WorkerDescriptor `yaml:"workers" json:"workers,omitempty"`
	Debug       Debug    `yaml:"debug" json:"debug"`
}

// Global carries defaults shared by all scenarios.
type Global struct {
	BaseURL   string            `yaml:"base_url" json:"base_url"`
	Timeout   Duration          `yaml:"timeout" json:"timeout"`
	ThinkTime string            `yaml:"think_time" json:"think_time"`
	Variables map[string]interface{} `yaml:"variables" json:"variables"`
	Browser   BrowserOptions    `yaml:"browser" json:"browser"`
	Faker     FakerOptions      `yaml:"faker" json:"faker"`
}

// BrowserOptions configures the lazily-launched per-VU browser context.
type BrowserOptions struct {
	Type     string   `yaml:"type" json:"type"`
	Headless bool     `yaml:"headless" json:"headless"`
	Viewport [2]int   `yaml:"viewport" json:"viewport"`
	SlowMo   Duration `yaml:"slow_mo" json:"slow_mo"`
}

// FakerOptions configures the lazily-initialized faker.
type FakerOptions struct {
	Locale string `yaml:"locale" json:"locale"`
	Seed   null.Int `yaml:"seed" json:"seed"`
}

// Debug carries request/response capture toggles.
type Debug struct {
	CaptureRequestHeaders  bool `yaml:"capture_request_headers" json:"capture_request_headers"`
	CaptureRequestBody     bool `yaml:"capture_request_body" json:"capture_request_body"`
	CaptureResponseHeaders bool `yaml:"capture_response_headers" json:"capture_response_headers"`
	CaptureResponseBody    bool `yaml:"capture_response_body" json:"capture_response_body"`
	MaxResponseBodySize    int  `yaml:"max_response_body_size" json:"max_response_body_size"`
}

// Report is the (external) HTML report directive; the core only carries it
// through to whatever renders it.
type Report struct {
	Path   string `yaml:"path" json:"path"`
	Format string `yaml:"format" json:"format"`
}

// WorkerDescriptor is a remote worker's static connection info plus its
// relative capacity/region tag.
type WorkerDescriptor struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Capacity int    `yaml:"capacity" json:"capacity"`
	Region   string `yaml:"region" json:"region"`
}

// Pattern is the load phase's shape.
type Pattern string

const (
	PatternBasic    Pattern = "basic"
	PatternStepping Pattern = "stepping"
	PatternArrivals Pattern = "arrivals"
)

// Load is either a single phase or an ordered sequence of phases.
type Load struct {
	Phases []Phase `yaml:"phases" json:"phases"`
}

// Phase is one contiguous segment of a load plan.
type Phase struct {
	Pattern Pattern `yaml:"pattern" json:"pattern"`

	// basic
	VirtualUsers int      `yaml:"virtual_users" json:"virtual_users"`
	RampUp       Duration `yaml:"ramp_up" json:"ramp_up"`
	Duration     Duration `yaml:"duration" json:"duration"`
	Iterations   null.Int `yaml:"iterations" json:"iterations"`

	// stepping
	Steps []Stage `yaml:"steps" json:"steps"`

	// arrivals
	Rate      float64 `yaml:"rate" json:"rate"`
	MaxVUs    int     `yaml:"max_vus" json:"max_vus"`
}

// Stage is one (users, duration, ramp_up) tuple of a stepping phase.
type Stage struct {
	Users    int      `yaml:"users" json:"users"`
	Duration Duration `yaml:"duration" json:"duration"`
	RampUp   Duration `yaml:"ramp_up" json:"ramp_up"`
}

// CSVBinding binds a scenario to a CSV data provider.
type CSVBinding struct {
	Path       string `yaml:"path" json:"path"`
	Delimiter  string `yaml:"delimiter" json:"delimiter"`
	Headers    []string `yaml:"headers" json:"headers,omitempty"`
	Filter     string `yaml:"filter" json:"filter,omitempty"`
	Randomize  bool   `yaml:"randomize" json:"randomize"`
	Mode       string `yaml:"mode" json:"mode"`       // unique|next|random
	Exhaustion string `yaml:"exhaustion" json:"exhaustion"` // cycle|stop-vu
}

// Hook is a setup/teardown callable; it is modeled the same way a
// Custom/Script step is (function-reference + inputs) since there's no
// structural reason to distinguish them.
type Hook struct {
	Function string                 `yaml:"function" json:"function"`
	Inputs   map[string]interface{} `yaml:"inputs" json:"inputs,omitempty"`
	// Fatal, when true, makes a hook error stop the VU's iteration loop
	// entirely; the error is still recorded as a synthetic failed step.
	Fatal bool `yaml:"fatal" json:"fatal,omitempty"`
}

// Scenario is an ordered list of steps representing a user journey.
type Scenario struct {
	Name     string      `yaml:"name" json:"name"`
	Weight   float64     `yaml:"weight" json:"weight"`
	Loop     int         `yaml:"loop" json:"loop"`
	CSV      *CSVBinding `yaml:"csv" json:"csv,omitempty"`
	Setup    *Hook       `yaml:"setup" json:"setup,omitempty"`
	Teardown *Hook       `yaml:"teardown" json:"teardown,omitempty"`
	Steps    []Step      `yaml:"steps" json:"steps"`
}

// SelectionWeight implements lib.Weighted so the VU engine can run
// weighted scenario selection generically over lib.Choose.
func (s Scenario) SelectionWeight() float64 {
	return s.Weight
}

// StepKind is the tagged-union discriminant over step payload shapes.
type StepKind string

const (
	StepREST   StepKind = "rest"
	StepSOAP   StepKind = "soap"
	StepWeb    StepKind = "web"
	StepWait   StepKind = "wait"
	StepCustom StepKind = "custom"
	StepScript StepKind = "script"
)

// Step is the common envelope (name, condition, checks, extracts, retry)
// plus the protocol-specific payload; exactly one of the Kind-matching
// payload fields is expected to be set.
type Step struct {
	Kind      StepKind               `yaml:"kind" json:"kind"`
	Name      string                 `yaml:"name" json:"name"`
	Condition string                 `yaml:"condition" json:"condition,omitempty"`
	Retry     *RetryPolicy           `yaml:"retry" json:"retry,omitempty"`
	Checks    []Check                `yaml:"checks" json:"checks,omitempty"`
	Extract   []Extract              `yaml:"extract" json:"extract,omitempty"`
	ThinkTime string                 `yaml:"think_time" json:"think_time,omitempty"`

	REST   *RESTStep   `yaml:"rest" json:"rest,omitempty"`
	SOAP   *SOAPStep   `yaml:"soap" json:"soap,omitempty"`
	Web    *WebStep    `yaml:"web" json:"web,omitempty"`
	Wait   *WaitStep   `yaml:"wait" json:"wait,omitempty"`
	Custom *CustomStep `yaml:"custom" json:"custom,omitempty"`
	Script *ScriptStep `yaml:"script" json:"script,omitempty"`
}

// RetryPolicy controls per-step retry behavior.
type RetryPolicy struct {
	MaxAttempts int      `yaml:"max_attempts" json:"max_attempts"`
	Delay       Duration `yaml:"delay" json:"delay"`
	Backoff     string   `yaml:"backoff" json:"backoff"` // "", linear, exponential
}

// Check is a post-execution assertion.
type Check struct {
	Name     string      `yaml:"name" json:"name"`
	Operator string      `yaml:"operator" json:"operator"` // equals|contains|exists|lt|lte|gt|gte
	Target   string      `yaml:"target" json:"target"`     // e.g. "status", "response_time", "json:<gjson path>", "text", "selector:..."
	Value    interface{} `yaml:"value" json:"value,omitempty"`
}

// Extract is a named capture directive.
type Extract struct {
	Name    string `yaml:"name" json:"name"`
	Source  string `yaml:"source" json:"source"` // json|regex|header|selector
	Path    string `yaml:"path" json:"path"`
	Default interface{} `yaml:"default" json:"default,omitempty"`
	Always  bool   `yaml:"always" json:"always"`
}

// RESTStep is the HTTP/REST step payload.
type RESTStep struct {
	Method      string                 `yaml:"method" json:"method"`
	URL         string                 `yaml:"url" json:"url"`
	Headers     map[string]string      `yaml:"headers" json:"headers,omitempty"`
	Body        interface{}            `yaml:"body" json:"body,omitempty"`
	Form        map[string]string      `yaml:"form" json:"form,omitempty"`
	ContentType string                 `yaml:"content_type" json:"content_type,omitempty"`
	Auth        *AuthSpec              `yaml:"auth" json:"auth,omitempty"`
	Timeout     Duration               `yaml:"timeout" json:"timeout,omitempty"`
}

// AuthSpec configures one of the REST adapter's authentication variants:
// basic, bearer, digest, oauth-token.
type AuthSpec struct {
	Type     string `yaml:"type" json:"type"`
	Username string `yaml:"username" json:"username,omitempty"`
	Password string `yaml:"password" json:"password,omitempty"`
	Token    string `yaml:"token" json:"token,omitempty"`
}

// SOAPStep is the SOAP step payload.
type SOAPStep struct {
	WSDL      string                 `yaml:"wsdl" json:"wsdl,omitempty"`
	Operation string                 `yaml:"operation" json:"operation,omitempty"`
	Args      map[string]interface{} `yaml:"args" json:"args,omitempty"`
	RawXML    string                 `yaml:"raw_xml" json:"raw_xml,omitempty"`
	SOAPAction string                `yaml:"soap_action" json:"soap_action,omitempty"`
	Endpoint  string                 `yaml:"endpoint" json:"endpoint,omitempty"`
	Timeout   Duration               `yaml:"timeout" json:"timeout,omitempty"`
}

// WebCommand is one browser action.
type WebCommand struct {
	Action   string   `yaml:"action" json:"action"` // navigate|click|fill|select|press|hover|check|uncheck|exists|visible|text|contains|value|not-exists|screenshot
	Selector string   `yaml:"selector" json:"selector,omitempty"`
	Value    string   `yaml:"value" json:"value,omitempty"`
	Timeout  Duration `yaml:"timeout" json:"timeout,omitempty"`
}

// WebStep is an ordered list of browser commands.
type WebStep struct {
	Commands []WebCommand `yaml:"commands" json:"commands"`
}

// WaitStep is a pure sleep.
type WaitStep struct {
	Duration string `yaml:"duration" json:"duration"`
}

// CustomStep invokes a user-supplied callable.
type CustomStep struct {
	Function string                 `yaml:"function" json:"function"`
	Inputs   map[string]interface{} `yaml:"inputs" json:"inputs,omitempty"`
	As       string                 `yaml:"as" json:"as,omitempty"`
}

// ScriptStep is the sandboxed-expression variant of Custom/Script,
// evaluated via the goja-backed expression engine.
type ScriptStep struct {
	Expression string                 `yaml:"expression" json:"expression"`
	Inputs     map[string]interface{} `yaml:"inputs" json:"inputs,omitempty"`
	As         string                 `yaml:"as" json:"as,omitempty"`
}

// Duration wraps time.Duration to accept the <n>, <n>s, <n>ms, <n>m
// literal forms when decoded from YAML/JSON.
type Duration struct {
	time.Duration
}
