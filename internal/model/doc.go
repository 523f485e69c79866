// Package model defines the entities persisted by the dual-backend store.
//
// # Overview
//
// Every entity is a flat, JSON-serializable struct. The same value is written
// as an element of a JSON array inside a CRDT document (the durable copy) and
// projected into a relational row (the query cache).
//
// Entities are grouped by document:
//
//   - Global document: projects, accounts, users, settings
//   - Project document: task_lists, tasks, subtasks, tags and the
//     task/subtask to tag/user relations
//
// # Identity
//
// Each entity exposes EntityID. Relations have no id of their own and use a
// composite "<parent>:<child>" id, so the find-or-append logic of the document
// store keeps them unique too.
//
// # Design Principles
//
//   - Flat JSON structure (last-write-wins per entity)
//   - Validate checks invariants before anything reaches storage
//   - SetDefaults fills omitted fields so both backends see the same value
package model
