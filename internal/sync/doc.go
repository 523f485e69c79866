// Package sync rebuilds the relational cache from the documents.
//
// The documents are the source of truth; the relational tables are a
// projection of them for fast queries. The syncer re-projects a single
// document after it changed on disk (for example when another device's copy
// was merged in) or every document at once after the cache was lost:
//
//	<data_dir>/documents
//	     ├── global.crdt          → projects, accounts, users, settings
//	     └── project_<id>.crdt    → task lists, tasks, subtasks, tags, relations
//	                                      ↓
//	                                   Syncer
//	                                      ↓
//	                               <data_dir>/flequit.db
//
// Individual entity failures are logged and counted but never stop a sync.
package sync
