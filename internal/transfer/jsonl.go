// Package transfer moves a project in and out of the store as files: JSONL
// for backup and import, YAML for a readable tree of the project.
package transfer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/goccy/go-json"
	"github.com/varubogu/flequit-sub003/internal/model"
	"github.com/varubogu/flequit-sub003/internal/repository"
	"github.com/varubogu/flequit-sub003/internal/storeerr"
)

// Record kinds. Relation records use the relation kind itself.
const (
	KindProject  = "project"
	KindTaskList = "task_list"
	KindTask     = "task"
	KindSubTask  = "subtask"
	KindTag      = "tag"
)

// maxLine bounds one JSONL record.
const maxLine = 4 << 20

// Record is one line of a JSONL export.
type Record struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Result contains statistics about an export or import.
type Result struct {
	Records int
	Counts  map[string]int
	Errors  []string
}

func newResult() *Result {
	return &Result{Counts: make(map[string]int)}
}

func (r *Result) String() string {
	kinds := make([]string, 0, len(r.Counts))
	for k := range r.Counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	s := fmt.Sprintf("%d records", r.Records)
	for _, k := range kinds {
		s += fmt.Sprintf(", %s=%d", k, r.Counts[k])
	}
	if len(r.Errors) > 0 {
		s += fmt.Sprintf(", %d errors", len(r.Errors))
	}
	return s
}

// ExportJSONL writes the project and everything in it to w, one record per
// line, parents before children.
func ExportJSONL(ctx context.Context, repos *repository.Repositories, projectID string, w io.Writer) (*Result, error) {
	project, ok, err := repos.Projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to read project: %w", err)
	}
	if !ok {
		return nil, storeerr.NotFound("export", "project", projectID)
	}

	result := newResult()
	enc := json.NewEncoder(w)
	write := func(kind string, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", kind, err)
		}
		if err := enc.Encode(Record{Kind: kind, Data: data}); err != nil {
			return fmt.Errorf("failed to write %s: %w", kind, err)
		}
		result.Records++
		result.Counts[kind]++
		return nil
	}

	if err := write(KindProject, project); err != nil {
		return nil, err
	}
	if err := exportAll(ctx, repos.TaskLists, projectID, KindTaskList, write); err != nil {
		return nil, err
	}
	if err := exportAll(ctx, repos.Tasks, projectID, KindTask, write); err != nil {
		return nil, err
	}
	if err := exportAll(ctx, repos.SubTasks, projectID, KindSubTask, write); err != nil {
		return nil, err
	}
	if err := exportAll(ctx, repos.Tags, projectID, KindTag, write); err != nil {
		return nil, err
	}
	for _, rel := range repos.Relations() {
		if err := exportAll(ctx, rel.ProjectRepository, projectID, string(rel.Kind()), write); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func exportAll[T model.Scoped](ctx context.Context, repo *repository.ProjectRepository[T], projectID, kind string, write func(string, any) error) error {
	items, err := repo.FindAll(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", kind, err)
	}
	for _, item := range items {
		if err := write(kind, item); err != nil {
			return err
		}
	}
	return nil
}

// ImportOptions configures ImportJSONL.
type ImportOptions struct {
	// DryRun decodes and validates every record without saving.
	DryRun bool
}

// ImportJSONL saves every record read from r. A record that cannot be
// decoded, validated or saved is reported in Result.Errors and skipped; only
// a read failure aborts the import.
func ImportJSONL(ctx context.Context, repos *repository.Repositories, r io.Reader, opts ImportOptions) (*Result, error) {
	savers := map[string]func(context.Context, []byte, bool) error{
		KindProject:  saver(repos.Projects.Save),
		KindTaskList: saver(repos.TaskLists.Save),
		KindTask:     saver(repos.Tasks.Save),
		KindSubTask:  saver(repos.SubTasks.Save),
		KindTag:      saver(repos.Tags.Save),
	}
	for _, rel := range repos.Relations() {
		savers[string(rel.Kind())] = saver(rel.Save)
	}

	result := newResult()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLine)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		if err := ctx.Err(); err != nil {
			return result, err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: invalid JSON: %v", lineNum, err))
			continue
		}
		save, ok := savers[rec.Kind]
		if !ok {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: unknown record kind %q", lineNum, rec.Kind))
			continue
		}
		if err := save(ctx, rec.Data, opts.DryRun); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %s: %v", lineNum, rec.Kind, err))
			continue
		}
		result.Records++
		result.Counts[rec.Kind]++
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("failed to read line %d: %w", lineNum+1, err)
	}
	return result, nil
}

// defaulter is implemented by the pointer of every entity.
type defaulter[T any] interface {
	*T
	model.Entity
	SetDefaults()
}

func saver[T any, P defaulter[T]](save func(context.Context, T) error) func(context.Context, []byte, bool) error {
	return func(ctx context.Context, data []byte, dryRun bool) error {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("failed to decode: %w", err)
		}
		P(&v).SetDefaults()
		if dryRun {
			return P(&v).Validate()
		}
		return save(ctx, v)
	}
}

// WriteFile writes the output of write to path atomically via a temp file.
func WriteFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpPath := path + ".tmp"
	// #nosec G304 - controlled path from CLI
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	bw := bufio.NewWriter(f)
	if err := write(bw); err != nil {
		f.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
