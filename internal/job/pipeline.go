// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package job coordinates one aggregation run end to end and owns the
// job state machine. Implements: prd015-jobs (R1-R4);
//
//	docs/ARCHITECTURE § Orchestrator.
package job

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/patent-scout/internal/audit"
	"github.com/pdiddy/patent-scout/internal/inference"
	"github.com/pdiddy/patent-scout/internal/normalize"
	"github.com/pdiddy/patent-scout/internal/schedule"
	"github.com/pdiddy/patent-scout/internal/session"
	"github.com/pdiddy/patent-scout/internal/source"
	"github.com/pdiddy/patent-scout/internal/strategy"
	"github.com/pdiddy/patent-scout/internal/translate"
	"github.com/pdiddy/patent-scout/pkg/types"
)

// Translator localizes seed terms. Satisfied by translate.Client.
type Translator interface {
	Variants(ctx context.Context, terms []string) []string
}

// FamilyResolver expands an international publication into its national
// family members. Satisfied by source.EPORegistry.
type FamilyResolver interface {
	FamilyMembers(ctx context.Context, intlPub string) ([]types.RawMatch, error)
}

// IntlLinker finds the international publications a national filing
// references. Satisfied by source.GooglePatents.
type IntlLinker interface {
	WOReferences(ctx context.Context, pubNumber string) ([]string, error)
}

// Pipeline bundles the stages and collaborators one job runs through.
// Nil collaborators disable their phase.
type Pipeline struct {
	Cfg        types.PipelineConfig
	Stateless  []source.Connector
	Stateful   source.StatefulConnector
	Family     FamilyResolver
	Linker     IntlLinker
	Translator Translator
	Log        zerolog.Logger
}

// NewPipeline wires the default connectors from configuration. Disabled
// sources are simply absent from the pipeline.
func NewPipeline(cfg types.PipelineConfig, log zerolog.Logger) *Pipeline {
	p := &Pipeline{Cfg: cfg, Log: log}
	target, _ := strategy.Target(cfg.Strategy)

	if cfg.Registry.Enabled {
		reg := &source.EPORegistry{
			Client: &http.Client{Timeout: cfg.Registry.Timeout},
			Cfg:    cfg.Registry,
		}
		p.Stateless = append(p.Stateless, reg)
		p.Family = reg
	}
	if cfg.PublicSearch.Enabled {
		pub := &source.GooglePatents{
			Client:        &http.Client{Timeout: cfg.PublicSearch.Timeout},
			Cfg:           cfg.PublicSearch,
			TargetCountry: target,
		}
		p.Stateless = append(p.Stateless, pub)
		p.Linker = pub
	}
	if cfg.Office.Enabled {
		p.Stateful = &source.INPIOffice{Cfg: cfg.Office}
	}
	if cfg.Translation.TargetLanguage != "" {
		p.Translator = &translate.Client{
			HTTP: &http.Client{Timeout: cfg.Translation.Timeout},
			Cfg:  cfg.Translation,
		}
	}
	return p
}

// Execute runs the full pipeline for one job. The returned error is
// job-fatal; everything recoverable lands in the result's diagnostics.
func (p *Pipeline) Execute(ctx context.Context, jobID string, inputs types.JobInputs) (*types.JobResult, error) {
	started := time.Now()
	log := p.Log.With().Str("job_id", jobID).Logger()

	target, err := strategy.Target(p.Cfg.Strategy)
	if err != nil {
		return nil, err
	}

	// Localize seeds unless the caller supplied variants already.
	if len(inputs.TranslatedVariants) == 0 && p.Translator != nil {
		seeds := append([]string{inputs.Molecule}, inputs.DevCodes...)
		inputs.TranslatedVariants = p.Translator.Variants(ctx, seeds)
	}

	terms, err := strategy.Generate(p.Cfg.Strategy, inputs)
	if err != nil {
		return nil, fmt.Errorf("invalid inputs: %w", err)
	}
	log.Info().Int("terms", len(terms)).Str("molecule", inputs.Molecule).Msg("terms generated")

	sched := &schedule.Scheduler{
		Stateless: p.Stateless,
		Stateful:  p.Stateful,
		Cfg:       p.Cfg.Scheduler,
		Log:       log,
	}
	if p.Stateful != nil {
		sched.Sessions = session.NewManager(p.Stateful, p.Cfg.Session)
	}

	out := sched.Run(ctx, terms)
	if out.AuthErr != nil && p.Cfg.Office.Mandatory {
		return nil, fmt.Errorf("mandatory source unavailable: %w", out.AuthErr)
	}

	set := normalize.NewSet()
	for _, m := range out.Matches {
		set.Add(m)
	}

	diags := out.Diagnostics
	diags = append(diags, p.expandFamilies(ctx, set)...)
	diags = append(diags, p.linkInternational(ctx, set, target)...)

	records := set.Records()
	pending := inference.Infer(p.Cfg.Inference, records, target, time.Now())

	result := &types.JobResult{
		JobID:          jobID,
		Inputs:         inputs,
		Records:        records,
		Pending:        pending,
		Diagnostics:    diags,
		Completeness:   types.CompletenessFull,
		TermsGenerated: len(terms),
		TermsSearched:  out.TermsSearched,
		ElapsedSeconds: time.Since(started).Seconds(),
		CompletedAt:    time.Now(),
	}
	if out.Partial || out.AuthErr != nil || ctx.Err() != nil {
		result.Completeness = types.CompletenessPartial
	}

	if p.Cfg.Audit.ReferenceDir != "" {
		ref, lerr := audit.LoadFor(p.Cfg.Audit.ReferenceDir, inputs.Molecule, target)
		switch {
		case lerr == nil:
			report := audit.Compare(p.Cfg.Audit, records, ref)
			result.Audit = &report
		case errors.Is(lerr, os.ErrNotExist):
			log.Debug().Str("molecule", inputs.Molecule).Msg("no reference set, skipping audit")
		default:
			return nil, fmt.Errorf("loading reference set: %w", lerr)
		}
	}

	log.Info().Int("records", len(records)).Int("pending", len(pending)).
		Str("completeness", string(result.Completeness)).Msg("job finished")
	return result, nil
}

// expandFamilies resolves each international publication's family and
// merges the national members into the record set.
func (p *Pipeline) expandFamilies(ctx context.Context, set *normalize.Set) []types.Diagnostic {
	if p.Family == nil {
		return nil
	}
	var diags []types.Diagnostic
	for _, rec := range set.Records() {
		if ctx.Err() != nil {
			break
		}
		if rec.ID.Kind != types.KindInternational {
			continue
		}
		members, err := p.Family.FamilyMembers(ctx, rec.ID.String())
		if err != nil {
			diags = append(diags, types.Diagnostic{
				Source:  "epo",
				Term:    rec.ID.String(),
				Kind:    string(source.KindOf(err)),
				Message: err.Error(),
			})
			continue
		}
		for _, m := range members {
			set.Add(m)
		}
	}
	return diags
}

// linkInternational back-fills RelatedIntl on target-jurisdiction
// records so the inferencer can tell which families already entered.
func (p *Pipeline) linkInternational(ctx context.Context, set *normalize.Set, target string) []types.Diagnostic {
	if p.Linker == nil {
		return nil
	}
	var diags []types.Diagnostic
	for _, rec := range set.Records() {
		if rec.ID.Country != target || rec.RelatedIntl != "" {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		refs, err := p.Linker.WOReferences(ctx, rec.ID.String()+rec.KindCode)
		if err != nil {
			diags = append(diags, types.Diagnostic{
				Source:  "gpatents",
				Term:    rec.ID.String(),
				Kind:    string(source.KindOf(err)),
				Message: err.Error(),
			})
			continue
		}
		if len(refs) > 0 {
			set.LinkIntl(rec.ID, refs[0])
		}
	}
	return diags
}
