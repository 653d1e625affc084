// Package gateway is the single write path for catalog entities. It
// composes validation, the storage write, and history recording into
// one transaction: a rejected mutation leaves no trace, an accepted
// one commits the row and its audit records together.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aethermart/dataplane/engine/audit"
	"github.com/aethermart/dataplane/engine/entity"
	"github.com/aethermart/dataplane/engine/validate"
	"github.com/aethermart/dataplane/pkg/logger"
	"github.com/jackc/pgx/v5"
)

// Config wires a Gateway. Registry, Repo, Audits, and Tx are required;
// Rules, Recorder, and Now fall back to the store defaults.
type Config struct {
	Registry *entity.Registry
	Rules    validate.Rules
	Recorder *audit.Recorder
	Repo     Repository
	Audits   audit.Store
	Tx       Transactor
	Now      func() time.Time
}

type Gateway struct {
	registry *entity.Registry
	rules    validate.Rules
	recorder *audit.Recorder
	repo     Repository
	audits   audit.Store
	tx       Transactor
	now      func() time.Time
}

func New(cfg *Config) (*Gateway, error) {
	if cfg == nil {
		return nil, fmt.Errorf("gateway config is required")
	}
	if cfg.Registry == nil || cfg.Repo == nil || cfg.Audits == nil || cfg.Tx == nil {
		return nil, fmt.Errorf("gateway requires a registry, a repository, an audit store, and a transactor")
	}
	g := &Gateway{
		registry: cfg.Registry,
		rules:    cfg.Rules,
		recorder: cfg.Recorder,
		repo:     cfg.Repo,
		audits:   cfg.Audits,
		tx:       cfg.Tx,
		now:      cfg.Now,
	}
	if g.rules == nil {
		g.rules = validate.DefaultRules()
	}
	if g.recorder == nil {
		g.recorder = audit.NewRecorder(audit.DefaultPolicies()...)
	}
	if g.now == nil {
		g.now = func() time.Time { return time.Now().UTC() }
	}
	return g, nil
}

// Apply processes one proposed mutation end to end. On success the
// returned Commit carries the row id, the full written state, and the
// history records appended with it. A *Rejection error means the
// mutation was refused before any state changed.
func (g *Gateway) Apply(ctx context.Context, mutation *Mutation) (*Commit, error) {
	if mutation == nil {
		return nil, fmt.Errorf("mutation is required")
	}
	if mutation.Op == OpDelete {
		return nil, ErrDeleteNotSupported
	}
	def, err := g.registry.Get(mutation.Kind)
	if err != nil {
		return nil, err
	}
	if len(mutation.Fields) == 0 {
		return nil, fmt.Errorf("%s %s: %w", mutation.Op, mutation.Kind, ErrNoFields)
	}
	proposed, err := coerce(def, mutation)
	if err != nil {
		return nil, err
	}
	var commit *Commit
	txErr := g.tx.WithTx(ctx, func(tx pgx.Tx) error {
		var fnErr error
		commit, fnErr = g.applyInTx(ctx, g.repo.WithTx(tx), g.audits.WithTx(tx), def, mutation, proposed)
		return fnErr
	})
	if txErr != nil {
		return nil, txErr
	}
	logger.FromContext(ctx).Debug("Mutation committed",
		"kind", mutation.Kind,
		"op", mutation.Op,
		"id", commit.ID,
		"audit_records", len(commit.Records),
	)
	return commit, nil
}

func (g *Gateway) applyInTx(
	ctx context.Context,
	repo Repository,
	audits audit.Store,
	def *entity.Def,
	mutation *Mutation,
	proposed entity.Fields,
) (*Commit, error) {
	switch mutation.Op {
	case OpInsert:
		return g.insert(ctx, repo, audits, def, mutation, proposed)
	case OpUpdate:
		return g.update(ctx, repo, audits, def, mutation, proposed)
	default:
		return nil, fmt.Errorf("unknown mutation op: %q", mutation.Op)
	}
}

func (g *Gateway) insert(
	ctx context.Context,
	repo Repository,
	audits audit.Store,
	def *entity.Def,
	mutation *Mutation,
	proposed entity.Fields,
) (*Commit, error) {
	if v := g.rules.For(def.Kind).Check(proposed); v != nil {
		return nil, &Rejection{Kind: def.Kind, Op: OpInsert, Violation: v}
	}
	id, err := repo.Insert(ctx, def, proposed)
	if err != nil {
		return nil, g.mapWriteError(def, OpInsert, err)
	}
	records, err := g.recorder.Changes(audit.OpCreated, def.Kind, id, nil, proposed, mutation.Actor, g.now())
	if err != nil {
		return nil, err
	}
	if err := appendAll(ctx, audits, records); err != nil {
		return nil, err
	}
	return &Commit{ID: id, State: proposed.Clone(), Records: records}, nil
}

func (g *Gateway) update(
	ctx context.Context,
	repo Repository,
	audits audit.Store,
	def *entity.Def,
	mutation *Mutation,
	proposed entity.Fields,
) (*Commit, error) {
	if mutation.ID == 0 {
		return nil, fmt.Errorf("%s: %w", def.Kind, ErrMissingID)
	}
	before, err := repo.GetForUpdate(ctx, def, mutation.ID)
	if err != nil {
		return nil, err
	}
	effective := before.Merge(proposed)
	if v := g.rules.For(def.Kind).Check(effective); v != nil {
		return nil, &Rejection{Kind: def.Kind, Op: OpUpdate, Violation: v}
	}
	if err := repo.Update(ctx, def, mutation.ID, proposed); err != nil {
		return nil, g.mapWriteError(def, OpUpdate, err)
	}
	records, err := g.recorder.Changes(audit.OpUpdated, def.Kind, mutation.ID, before, effective, mutation.Actor, g.now())
	if err != nil {
		return nil, err
	}
	if err := appendAll(ctx, audits, records); err != nil {
		return nil, err
	}
	return &Commit{ID: mutation.ID, State: effective, Records: records}, nil
}

// coerce canonicalizes the proposed values and rejects unknown field
// names. Inserts may carry the id column for source-identity loads;
// updates may not touch it.
func coerce(def *entity.Def, mutation *Mutation) (entity.Fields, error) {
	coerced := make(entity.Fields, len(mutation.Fields))
	for name, value := range mutation.Fields {
		fd, ok := def.Field(name)
		if !ok {
			if name != def.IDColumn {
				return nil, fmt.Errorf("%s.%s: %w", def.Table, name, entity.ErrUnknownField)
			}
			if mutation.Op == OpUpdate {
				return nil, fmt.Errorf("%s.%s: %w", def.Table, name, ErrImmutableID)
			}
			fd = def.IDField()
		}
		canonical, err := fd.Coerce(value)
		if err != nil {
			return nil, err
		}
		coerced[name] = canonical
	}
	return coerced, nil
}

// mapWriteError turns a storage foreign key report into a rejection on
// the offending field.
func (g *Gateway) mapWriteError(def *entity.Def, op Op, err error) error {
	var refErr *ReferenceError
	if !errors.As(err, &refErr) {
		return err
	}
	detail := fmt.Sprintf("%s references a missing row", refErr.Field)
	for _, rule := range g.rules.For(def.Kind).References() {
		if rule.Field == refErr.Field {
			detail = fmt.Sprintf("%s references a missing %s row", rule.Field, rule.Ref)
			break
		}
	}
	return &Rejection{
		Kind: def.Kind,
		Op:   op,
		Violation: &validate.Violation{
			Rule:   "reference_" + refErr.Field,
			Field:  refErr.Field,
			Reason: validate.ReasonDanglingReference,
			Detail: detail,
		},
	}
}

func appendAll(ctx context.Context, audits audit.Store, records []*audit.Record) error {
	for _, rec := range records {
		if err := audits.Append(ctx, rec); err != nil {
			return fmt.Errorf("appending %s record: %w", rec.Stream, err)
		}
	}
	return nil
}
