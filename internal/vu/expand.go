package vu

import (
	"github.com/loadvane/corrida/internal/config"
	"github.com/loadvane/corrida/internal/lib"
	"github.com/loadvane/corrida/internal/template"
)

// expandStep returns a copy of step with every template-eligible string
// field — any field that may contain {{path}} references — resolved
// against ctx. The original step (and the config.Test it belongs to) is
// never mutated — config.Test is read-only for the run's lifetime.
func expandStep(e *template.Expander, step config.Step, ctx *lib.Context) (config.Step, error) {
	out := step
	var err error

	if out.Condition, err = e.Expand(out.Condition, ctx); err != nil {
		return step, err
	}
	if out.ThinkTime, err = e.Expand(out.ThinkTime, ctx); err != nil {
		return step, err
	}
	for i := range out.Checks {
		if s, ok := out.Checks[i].Value.(string); ok {
			if out.Checks[i].Value, err = e.Expand(s, ctx); err != nil {
				return step, err
			}
		}
	}
	for i := range out.Extract {
		if out.Extract[i].Path, err = e.Expand(out.Extract[i].Path, ctx); err != nil {
			return step, err
		}
	}

	switch out.Kind {
	case config.StepREST:
		if out.REST != nil {
			r := *out.REST
			if r.URL, err = e.Expand(r.URL, ctx); err != nil {
				return step, err
			}
			if r.Headers, err = expandMap(e, r.Headers, ctx); err != nil {
				return step, err
			}
			if r.Form, err = expandMap(e, r.Form, ctx); err != nil {
				return step, err
			}
			if s, ok := r.Body.(string); ok {
				if r.Body, err = e.Expand(s, ctx); err != nil {
					return step, err
				}
			}
			if r.Auth != nil {
				a := *r.Auth
				if a.Username, err = e.Expand(a.Username, ctx); err != nil {
					return step, err
				}
				if a.Password, err = e.Expand(a.Password, ctx); err != nil {
					return step, err
				}
				if a.Token, err = e.Expand(a.Token, ctx); err != nil {
					return step, err
				}
				r.Auth = &a
			}
			out.REST = &r
		}
	case config.StepSOAP:
		if out.SOAP != nil {
			s := *out.SOAP
			if s.Operation, err = e.Expand(s.Operation, ctx); err != nil {
				return step, err
			}
			if s.RawXML, err = e.Expand(s.RawXML, ctx); err != nil {
				return step, err
			}
			if s.Endpoint, err = e.Expand(s.Endpoint, ctx); err != nil {
				return step, err
			}
			if s.Args, err = expandInterfaceMap(e, s.Args, ctx); err != nil {
				return step, err
			}
			out.SOAP = &s
		}
	case config.StepWeb:
		if out.Web != nil {
			w := *out.Web
			cmds := make([]config.WebCommand, len(w.Commands))
			for i, c := range w.Commands {
				if c.Selector, err = e.Expand(c.Selector, ctx); err != nil {
					return step, err
				}
				if c.Value, err = e.Expand(c.Value, ctx); err != nil {
					return step, err
				}
				cmds[i] = c
			}
			w.Commands = cmds
			out.Web = &w
		}
	case config.StepWait:
		if out.Wait != nil {
			w := *out.Wait
			if w.Duration, err = e.Expand(w.Duration, ctx); err != nil {
				return step, err
			}
			out.Wait = &w
		}
	case config.StepCustom:
		if out.Custom != nil {
			c := *out.Custom
			if c.Inputs, err = expandInterfaceMap(e, c.Inputs, ctx); err != nil {
				return step, err
			}
			out.Custom = &c
		}
	case config.StepScript:
		if out.Script != nil {
			s := *out.Script
			if s.Inputs, err = expandInterfaceMap(e, s.Inputs, ctx); err != nil {
				return step, err
			}
			out.Script = &s
		}
	}

	return out, nil
}

func expandMap(e *template.Expander, m map[string]string, ctx *lib.Context) (map[string]string, error) {
	if m == nil {
		return nil, nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		expanded, err := e.Expand(v, ctx)
		if err != nil {
			return nil, err
		}
		out[k] = expanded
	}
	return out, nil
}

func expandInterfaceMap(e *template.Expander, m map[string]interface{}, ctx *lib.Context) (map[string]interface{}, error) {
	if m == nil {
		return nil, nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			expanded, err := e.Expand(s, ctx)
			if err != nil {
				return nil, err
			}
			out[k] = expanded
			continue
		}
		out[k] = v
	}
	return out, nil
}
