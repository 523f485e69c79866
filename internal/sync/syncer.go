package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/varubogu/flequit-sub003/internal/docstore"
	"github.com/varubogu/flequit-sub003/internal/document"
	"github.com/varubogu/flequit-sub003/internal/logging"
	"github.com/varubogu/flequit-sub003/internal/model"
	"github.com/varubogu/flequit-sub003/internal/relational"
	"github.com/varubogu/flequit-sub003/internal/repository"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds how many documents FullSync projects at once.
const DefaultConcurrency = 4

// Stats summarises one sync.
type Stats struct {
	Documents       int
	FailedDocuments int
	Entities        int
	Failed          int
	Pruned          int
	Duration        time.Duration
}

func (s *Stats) add(o Stats) {
	s.Documents += o.Documents
	s.FailedDocuments += o.FailedDocuments
	s.Entities += o.Entities
	s.Failed += o.Failed
	s.Pruned += o.Pruned
}

func (s Stats) String() string {
	return fmt.Sprintf("documents=%d (failed=%d), entities=%d (failed=%d), pruned=%d",
		s.Documents, s.FailedDocuments, s.Entities, s.Failed, s.Pruned)
}

// Syncer keeps the relational cache in step with the documents.
type Syncer interface {
	// SyncDocument projects one document into the cache and removes cached
	// rows the document no longer holds.
	SyncDocument(ctx context.Context, typ document.Type) (Stats, error)

	// FullSync projects every document and drops cached rows of projects
	// whose document is gone.
	FullSync(ctx context.Context) (Stats, error)

	// RemoveProject drops every cached row of a project.
	RemoveProject(ctx context.Context, projectID string) error
}

// Options configures a Syncer.
type Options struct {
	// Concurrency bounds FullSync; DefaultConcurrency when zero.
	Concurrency int
	Logger      *logging.Logger
}

type syncer struct {
	docs        *document.Manager
	db          *relational.DB
	concurrency int
	log         *logging.Logger
}

// New creates a Syncer. The database schema must already be migrated.
func New(docs *document.Manager, db *relational.DB, opts Options) (Syncer, error) {
	if docs == nil || db == nil {
		return nil, errors.New("sync needs both the document and the relational backend")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &syncer{docs: docs, db: db, concurrency: opts.Concurrency, log: log.With("sync")}, nil
}

// SyncDocument implements Syncer.SyncDocument.
func (s *syncer) SyncDocument(ctx context.Context, typ document.Type) (Stats, error) {
	start := time.Now()
	st := Stats{Documents: 1}

	var err error
	if typ.IsGlobal() {
		err = s.syncGlobal(ctx, typ, &st)
	} else {
		err = s.syncProject(ctx, typ, &st)
	}
	st.Duration = time.Since(start)
	if err != nil {
		st.FailedDocuments = 1
		return st, fmt.Errorf("failed to sync %s: %w", typ, err)
	}

	s.log.Debugf("synced %s: %s", typ, st)
	return st, nil
}

func (s *syncer) syncGlobal(ctx context.Context, typ document.Type, st *Stats) error {
	if err := syncEntities(ctx, s, typ, repository.KeyProjects, relational.ProjectCodec, nil, st); err != nil {
		return err
	}
	if err := syncEntities(ctx, s, typ, repository.KeyAccounts, relational.AccountCodec, nil, st); err != nil {
		return err
	}
	if err := syncEntities(ctx, s, typ, repository.KeyUsers, relational.UserCodec, nil, st); err != nil {
		return err
	}
	return syncEntities(ctx, s, typ, repository.KeySettings, relational.SettingsCodec, nil, st)
}

func (s *syncer) syncProject(ctx context.Context, typ document.Type, st *Stats) error {
	scope := func(e model.Scoped) bool { return e.EntityProjectID() == typ.ProjectID() }

	if err := syncEntities(ctx, s, typ, repository.KeyTaskLists, relational.TaskListCodec, scoped[model.TaskList](scope), st); err != nil {
		return err
	}
	if err := syncEntities(ctx, s, typ, repository.KeyTasks, relational.TaskCodec, scoped[model.Task](scope), st); err != nil {
		return err
	}
	if err := syncEntities(ctx, s, typ, repository.KeySubTasks, relational.SubTaskCodec, scoped[model.SubTask](scope), st); err != nil {
		return err
	}
	if err := syncEntities(ctx, s, typ, repository.KeyTags, relational.TagCodec, scoped[model.Tag](scope), st); err != nil {
		return err
	}
	for _, kind := range model.RelationKinds {
		if err := s.syncRelations(ctx, typ, kind, st); err != nil {
			return err
		}
	}
	return nil
}

func scoped[E model.Scoped](keep func(model.Scoped) bool) func(E) bool {
	return func(e E) bool { return keep(e) }
}

// syncEntities saves every entity of one collection and deletes cached rows
// that are no longer in it. inScope selects the cached rows belonging to the
// document; nil means the whole table.
func syncEntities[E model.Entity, R relational.Row](ctx context.Context, s *syncer, typ document.Type, key string, codec relational.Codec[E, R], inScope func(E) bool, st *Stats) error {
	store, err := relational.NewEntityStore(s.db, codec)
	if err != nil {
		return err
	}

	items, err := docstore.New[E](s.docs, typ, key).List(ctx)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}

	keep := make(map[string]bool, len(items))
	for _, item := range items {
		keep[item.EntityID()] = true
		if err := item.Validate(); err != nil {
			s.log.Warnf("skipping invalid %s %s: %v", key, item.EntityID(), err)
			st.Failed++
			continue
		}
		if err := store.Save(ctx, item); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Warnf("failed to sync %s %s: %v", key, item.EntityID(), err)
			st.Failed++
			continue
		}
		st.Entities++
	}

	cached, err := store.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list cached %s: %w", key, err)
	}
	for _, c := range cached {
		if keep[c.EntityID()] || (inScope != nil && !inScope(c)) {
			continue
		}
		if _, err := store.Delete(ctx, c.EntityID()); err != nil {
			s.log.Warnf("failed to prune %s %s: %v", key, c.EntityID(), err)
			st.Failed++
			continue
		}
		st.Pruned++
	}
	return nil
}

func (s *syncer) syncRelations(ctx context.Context, typ document.Type, kind model.RelationKind, st *Stats) error {
	store, err := relational.NewRelationStore(s.db, kind)
	if err != nil {
		return err
	}

	items, err := docstore.New[model.Relation](s.docs, typ, string(kind)).List(ctx)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", kind, err)
	}

	keep := make(map[string]bool, len(items))
	for _, r := range items {
		keep[r.EntityID()] = true
		if err := r.Validate(); err != nil {
			s.log.Warnf("skipping invalid %s %s: %v", kind, r.EntityID(), err)
			st.Failed++
			continue
		}
		if _, err := store.Add(ctx, r); err != nil {
			s.log.Warnf("failed to sync %s %s: %v", kind, r.EntityID(), err)
			st.Failed++
			continue
		}
		st.Entities++
	}

	cached, err := store.FindByProject(ctx, typ.ProjectID())
	if err != nil {
		return fmt.Errorf("failed to list cached %s: %w", kind, err)
	}
	for _, r := range cached {
		if keep[r.EntityID()] {
			continue
		}
		if _, err := store.Remove(ctx, r.ParentID, r.ChildID); err != nil {
			s.log.Warnf("failed to prune %s %s: %v", kind, r.EntityID(), err)
			st.Failed++
			continue
		}
		st.Pruned++
	}
	return nil
}

// FullSync implements Syncer.FullSync.
func (s *syncer) FullSync(ctx context.Context) (Stats, error) {
	start := time.Now()

	types, err := s.docs.ListDocuments(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to list documents: %w", err)
	}
	if len(types) == 0 || !types[0].IsGlobal() {
		types = append([]document.Type{document.Global()}, types...)
	}
	s.log.Infof("starting full sync of %d documents", len(types))

	results := make([]Stats, len(types))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, typ := range types {
		i, typ := i, typ
		g.Go(func() error {
			st, err := s.SyncDocument(gctx, typ)
			results[i] = st
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.log.Warnf("%v", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	var total Stats
	for _, st := range results {
		total.add(st)
	}

	projects := make([]string, 0, len(types))
	for _, typ := range types {
		if !typ.IsGlobal() {
			projects = append(projects, typ.ProjectID())
		}
	}
	if err := s.pruneProjects(ctx, projects); err != nil {
		return total, err
	}

	total.Duration = time.Since(start)
	s.log.Infof("full sync complete: %s in %v", total, total.Duration.Round(time.Millisecond))
	return total, nil
}

// projectTables are the tables partitioned by project_id.
func projectTables() []string {
	tables := []string{"task_lists", "tasks", "subtasks", "tags"}
	for _, kind := range model.RelationKinds {
		tables = append(tables, string(kind))
	}
	return tables
}

// pruneProjects deletes cached rows of projects other than keep.
func (s *syncer) pruneProjects(ctx context.Context, keep []string) error {
	where := ""
	args := make([]any, len(keep))
	if len(keep) > 0 {
		where = " WHERE project_id NOT IN (" + strings.TrimSuffix(strings.Repeat("?, ", len(keep)), ", ") + ")"
		for i, id := range keep {
			args[i] = id
		}
	}
	for _, table := range projectTables() {
		if err := s.db.Exec(ctx, "DELETE FROM "+table+where, args...); err != nil {
			return fmt.Errorf("failed to prune %s: %w", table, err)
		}
	}
	return nil
}

// RemoveProject implements Syncer.RemoveProject.
func (s *syncer) RemoveProject(ctx context.Context, projectID string) error {
	for _, table := range projectTables() {
		if err := s.db.Exec(ctx, "DELETE FROM "+table+" WHERE project_id = ?", projectID); err != nil {
			return fmt.Errorf("failed to remove project %s from %s: %w", projectID, table, err)
		}
	}
	s.log.Infof("removed project %s from cache", projectID)
	return nil
}
