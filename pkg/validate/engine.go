package validate

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ridgeline-io/ridgeline/pkg/config"
	"github.com/ridgeline-io/ridgeline/pkg/log"
)

// InstanceTypeInfo describes instance type capabilities used by rules
type InstanceTypeInfo struct {
	VCPUs        int
	MemoryMiB    int64
	Architecture string
	EfaSupported bool
}

// SubnetInfo describes a subnet's placement
type SubnetInfo struct {
	VpcID            string
	AvailabilityZone string
}

// CloudFacts is the read-only compute/network facts provider consumed by
// validation rules. Implemented against EC2 in pkg/cloud.
type CloudFacts interface {
	InstanceTypeInfo(ctx context.Context, instanceType string) (InstanceTypeInfo, error)
	SubnetInfo(ctx context.Context, subnetID string) (SubnetInfo, error)
	SecurityGroupExists(ctx context.Context, groupID string) (bool, error)
}

// DryRunner performs the live dry-run checks against the target account.
// A failing probe is an Error finding; a collaborator error is reported as a
// Warning and never retried.
type DryRunner interface {
	ValidateTemplate(ctx context.Context, templateBody string) error
	ProbeBucket(ctx context.Context, bucket string) error
}

// Rule is one whole-tree validation rule
type Rule func(ctx context.Context, root *config.Root, facts CloudFacts) Findings

// Options controls one validation pass
type Options struct {
	// FailureLevel is the severity at or above which Check fails
	FailureLevel Severity
	// SuppressValidators skips the rule catalog and dry-run checks entirely;
	// structural checks (required parameters, section validators) still run.
	SuppressValidators bool
	// SkipDryRun skips only the live account probes
	SkipDryRun bool
	// Template, when non-empty, is dry-run validated against the account
	Template string
}

// Engine orchestrates parameter-, section- and tree-level validation plus the
// live dry-run checks.
type Engine struct {
	facts  CloudFacts
	dryrun DryRunner
	rules  []Rule
	log    zerolog.Logger
}

// NewEngine creates a validation engine with the default rule catalog
func NewEngine(facts CloudFacts, dryrun DryRunner) *Engine {
	return &Engine{
		facts:  facts,
		dryrun: dryrun,
		rules:  DefaultRules(),
		log:    log.WithComponent("validate"),
	}
}

// WithRules replaces the rule catalog; used by tests
func (e *Engine) WithRules(rules ...Rule) *Engine {
	e.rules = rules
	return e
}

// Validate runs every validation phase and returns all findings, never
// short-circuiting within a phase so the caller sees the complete set.
func (e *Engine) Validate(ctx context.Context, root *config.Root, opts Options) Findings {
	var findings Findings

	findings = append(findings, e.structural(root)...)

	if opts.SuppressValidators {
		return findings
	}

	for _, rule := range e.rules {
		findings = append(findings, rule(ctx, root, e.facts)...)
	}

	if !opts.SkipDryRun && e.dryrun != nil {
		findings = append(findings, e.dryRun(ctx, root, opts)...)
	}

	return findings
}

// structural validates every section depth-first: required parameters and
// section-level validators. These checks are never suppressed.
func (e *Engine) structural(root *config.Root) Findings {
	var findings Findings

	for _, key := range root.Schema().SectionKeys() {
		for _, s := range root.Sections(key) {
			spec := s.Spec()
			for _, p := range s.Params() {
				ps := p.Spec()
				if ps.Required && !p.Value().IsSet() {
					findings = append(findings, Finding{
						Severity: Error,
						Source:   "required",
						Path:     sectionPath(s) + "/" + ps.Key,
						Message:  fmt.Sprintf("parameter %q is required and has no default", ps.Key),
					})
				}
				for _, v := range ps.Validators {
					errs, warns := v(ps.Key, p.Value(), root)
					findings = append(findings, toFindings(ps.Key, sectionPath(s)+"/"+ps.Key, errs, warns)...)
				}
			}
			for _, v := range spec.Validators {
				errs, warns := v(s, root)
				findings = append(findings, toFindings(spec.Key, sectionPath(s), errs, warns)...)
			}
		}
	}

	return findings
}

// dryRun performs the single-attempt live checks against the target account
func (e *Engine) dryRun(ctx context.Context, root *config.Root, opts Options) Findings {
	var findings Findings

	if bucket := root.RootSection().Value("ResourceBucket").String(); bucket != "" {
		if err := e.dryrun.ProbeBucket(ctx, bucket); err != nil {
			findings = append(findings, Finding{
				Severity: Warning,
				Source:   "dry-run",
				Path:     "ResourceBucket",
				Message:  fmt.Sprintf("could not verify bucket %q: %v", bucket, err),
			})
		}
	}

	if opts.Template != "" {
		if err := e.dryrun.ValidateTemplate(ctx, opts.Template); err != nil {
			findings = append(findings, Finding{
				Severity: Error,
				Source:   "dry-run",
				Message:  fmt.Sprintf("template validation failed: %v", err),
			})
		}
	}

	return findings
}

func toFindings(source, path string, errs, warns []string) Findings {
	var out Findings
	for _, msg := range errs {
		out = append(out, Finding{Severity: Error, Source: source, Path: path, Message: msg})
	}
	for _, msg := range warns {
		out = append(out, Finding{Severity: Warning, Source: source, Path: path, Message: msg})
	}
	return out
}

func sectionPath(s *config.Section) string {
	if s.Label() == config.DefaultLabel {
		return s.Key()
	}
	return fmt.Sprintf("%s[%s]", s.Key(), s.Label())
}
