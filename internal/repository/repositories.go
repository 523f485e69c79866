package repository

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/varubogu/flequit-sub003/internal/config"
	"github.com/varubogu/flequit-sub003/internal/docstore"
	"github.com/varubogu/flequit-sub003/internal/document"
	"github.com/varubogu/flequit-sub003/internal/logging"
	"github.com/varubogu/flequit-sub003/internal/metrics"
	"github.com/varubogu/flequit-sub003/internal/model"
	"github.com/varubogu/flequit-sub003/internal/relational"
	"github.com/varubogu/flequit-sub003/internal/relational/migrate"
)

// Collection keys inside the documents.
const (
	KeyProjects  = "projects"
	KeyAccounts  = "accounts"
	KeyUsers     = "users"
	KeySettings  = "settings"
	KeyTaskLists = "task_lists"
	KeyTasks     = "tasks"
	KeySubTasks  = "subtasks"
	KeyTags      = "tags"
)

// Backends are the storage engines behind the repositories. A nil engine
// is disabled.
type Backends struct {
	Documents *document.Manager
	DB        *relational.DB
	Logger    *logging.Logger
	Metrics   *metrics.Recorder
}

// tables holds the relational stores the cascades work on directly.
type tables struct {
	taskLists *relational.EntityStore[model.TaskList, relational.TaskListRow]
	tasks     *relational.EntityStore[model.Task, relational.TaskRow]
	subTasks  *relational.EntityStore[model.SubTask, relational.SubTaskRow]
	tags      *relational.EntityStore[model.Tag, relational.TagRow]
	relations []*relational.RelationStore
}

// Repositories is every repository of the store, built over one set of
// backends.
type Repositories struct {
	Projects *Repository[model.Project]
	Accounts *LogicalRepository[model.Account]
	Users    *LogicalRepository[model.User]
	Settings *SettingsRepository

	TaskLists *ProjectRepository[model.TaskList]
	Tasks     *ProjectRepository[model.Task]
	SubTasks  *ProjectRepository[model.SubTask]
	Tags      *ProjectRepository[model.Tag]

	TaskTags           *RelationRepository
	TaskAssignments    *RelationRepository
	SubTaskTags        *RelationRepository
	SubTaskAssignments *RelationRepository

	backends Backends
	tables   tables
	log      *logging.Logger
}

// NewRepositories builds the repositories over b.
func NewRepositories(b Backends) (*Repositories, error) {
	if b.Documents == nil && b.DB == nil {
		return nil, ErrNoBackend
	}
	if b.Logger == nil {
		b.Logger = logging.Discard()
	}
	opts := []Option{WithLogger(b.Logger.With("repository")), WithMetrics(b.Metrics)}
	r := &Repositories{backends: b, log: b.Logger.With("repository")}

	var err error
	if r.Projects, err = globalRepo(b, "project", KeyProjects, relational.ProjectCodec, opts); err != nil {
		return nil, err
	}
	accounts, err := globalRepo(b, "account", KeyAccounts, relational.AccountCodec, opts)
	if err != nil {
		return nil, err
	}
	r.Accounts = newAccounts(accounts)
	users, err := globalRepo(b, "user", KeyUsers, relational.UserCodec, opts)
	if err != nil {
		return nil, err
	}
	r.Users = newUsers(users)
	settings, err := globalRepo(b, "settings", KeySettings, relational.SettingsCodec, opts)
	if err != nil {
		return nil, err
	}
	r.Settings = &SettingsRepository{repo: settings}

	if r.TaskLists, r.tables.taskLists, err = projectRepo(b, "task_list", KeyTaskLists, relational.TaskListCodec, opts); err != nil {
		return nil, err
	}
	if r.Tasks, r.tables.tasks, err = projectRepo(b, "task", KeyTasks, relational.TaskCodec, opts); err != nil {
		return nil, err
	}
	if r.SubTasks, r.tables.subTasks, err = projectRepo(b, "subtask", KeySubTasks, relational.SubTaskCodec, opts); err != nil {
		return nil, err
	}
	if r.Tags, r.tables.tags, err = projectRepo(b, "tag", KeyTags, relational.TagCodec, opts); err != nil {
		return nil, err
	}

	for _, rel := range []struct {
		kind model.RelationKind
		dst  **RelationRepository
	}{
		{model.RelationTaskTag, &r.TaskTags},
		{model.RelationTaskAssignment, &r.TaskAssignments},
		{model.RelationSubTaskTag, &r.SubTaskTags},
		{model.RelationSubTaskAssignment, &r.SubTaskAssignments},
	} {
		repo, err := relationRepo(b, rel.kind, opts)
		if err != nil {
			return nil, err
		}
		if repo.store != nil {
			r.tables.relations = append(r.tables.relations, repo.store)
		}
		*rel.dst = repo
	}
	return r, nil
}

func globalRepo[E model.Entity, R relational.Row](b Backends, name, key string, codec relational.Codec[E, R], opts []Option) (*Repository[E], error) {
	var docs Collection[E]
	if b.Documents != nil {
		docs = docstore.New[E](b.Documents, document.Global(), key)
	}
	var cache Cache[E]
	if b.DB != nil {
		store, err := relational.NewEntityStore(b.DB, codec)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s store: %w", name, err)
		}
		cache = store
	}
	return New(name, docs, cache, opts...)
}

func projectRepo[E model.Scoped, R relational.Row](b Backends, name, key string, codec relational.Codec[E, R], opts []Option) (*ProjectRepository[E], *relational.EntityStore[E, R], error) {
	var store *relational.EntityStore[E, R]
	var cache func(string) Cache[E]
	if b.DB != nil {
		var err error
		store, err = relational.NewEntityStore(b.DB, codec)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create %s store: %w", name, err)
		}
		cache = func(projectID string) Cache[E] { return newProjectCache(store, projectID) }
	}
	repo, err := newProjectRepository(name, key, b.Documents, cache, opts)
	return repo, store, err
}

func relationRepo(b Backends, kind model.RelationKind, opts []Option) (*RelationRepository, error) {
	var store *relational.RelationStore
	var cache func(string) Cache[model.Relation]
	if b.DB != nil {
		var err error
		store, err = relational.NewRelationStore(b.DB, kind)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s store: %w", kind, err)
		}
		cache = func(projectID string) Cache[model.Relation] { return newRelationCache(store, projectID) }
	}
	repo, err := newProjectRepository(string(kind), string(kind), b.Documents, cache, opts)
	if err != nil {
		return nil, err
	}
	return &RelationRepository{ProjectRepository: repo, kind: kind, store: store}, nil
}

// Documents returns the document manager, nil when disabled.
func (r *Repositories) Documents() *document.Manager { return r.backends.Documents }

// DB returns the relational cache, nil when disabled.
func (r *Repositories) DB() *relational.DB { return r.backends.DB }

// Metrics returns the metrics recorder, possibly nil.
func (r *Repositories) Metrics() *metrics.Recorder { return r.backends.Metrics }

// Relations returns the relation repositories in a stable order.
func (r *Repositories) Relations() []*RelationRepository {
	return []*RelationRepository{r.TaskTags, r.TaskAssignments, r.SubTaskTags, r.SubTaskAssignments}
}

// Store owns the backends opened from a configuration.
type Store struct {
	*Repositories
	Connections *relational.ConnectionManager

	closers []io.Closer
}

// Open opens the backends enabled in cfg, migrating the relational schema
// before first use, and returns the repositories over them.
func Open(ctx context.Context, cfg config.Config, log *logging.Logger, rec *metrics.Recorder) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if log == nil {
		log = logging.Discard()
	}

	s := &Store{}
	b := Backends{Logger: log, Metrics: rec}

	if cfg.Document.Enabled {
		m, err := document.NewManager(cfg.DocumentOptions(log))
		if err != nil {
			return nil, fmt.Errorf("failed to open documents: %w", err)
		}
		b.Documents = m
		s.closers = append(s.closers, m)
	}

	if cfg.Relational.Enabled {
		s.Connections = relational.Shared(cfg.RelationalOptions(log), migrate.Migrate(log))
		s.closers = append(s.closers, releaser{s.Connections})
		db, err := s.Connections.Get(ctx)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to open relational cache: %w", err)
		}
		b.DB = db
	}

	repos, err := NewRepositories(b)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Repositories = repos
	return s, nil
}

// releaser gives up a shared pool reference on Close.
type releaser struct{ cm *relational.ConnectionManager }

func (r releaser) Close() error { return r.cm.Release() }

// Close releases the backends in reverse opening order.
func (s *Store) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
