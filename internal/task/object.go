package task

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Object is the data-object collaborator a Task declares as input, output or
// mutable. Tasks never own an Object; they hold shared, URL-addressed
// references and only the wrapped computation touches the underlying storage.
type Object interface {
	URL() string
	LocalPath() string
	LastModified() (time.Time, error)
	Exists() bool
	ReadOnly() bool
}

// Splittable is an Object that can be decomposed into per-chunk sub-objects.
// ScatterTask and GatherTask return the auxiliary tasks that perform the
// actual split/join of the underlying storage, or nil when none is attached.
type Splittable interface {
	Object
	ChunkCount() int
	Chunk(i int) Object
	Complete() Object
	ScatterTask() *Task
	GatherTask() *Task
}

// LocalFile is an Object backed by a file on the local filesystem.
type LocalFile struct {
	path     string
	readOnly bool
}

// NewLocalFile creates a writable LocalFile for the given path.
// The path is cleaned but not required to exist.
func NewLocalFile(path string) *LocalFile {
	return &LocalFile{path: filepath.Clean(path)}
}

// NewReadOnlyFile creates a LocalFile that must never be assigned as a task
// output.
func NewReadOnlyFile(path string) *LocalFile {
	return &LocalFile{path: filepath.Clean(path), readOnly: true}
}

func (f *LocalFile) URL() string       { return "file://localhost" + absPath(f.path) }
func (f *LocalFile) LocalPath() string { return f.path }
func (f *LocalFile) ReadOnly() bool    { return f.readOnly }

func (f *LocalFile) Exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

func (f *LocalFile) LastModified() (time.Time, error) {
	fi, err := os.Stat(f.path)
	if err != nil {
		return time.Time{}, fmt.Errorf("stat %s: %w", f.path, err)
	}
	return fi.ModTime(), nil
}

func (f *LocalFile) String() string { return f.URL() }

func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

// SplitFile is a Splittable backed by one complete local file plus N per-chunk
// files. The chunk files follow the naming scheme <dir>/<chunk_NNN>_<base> so
// that all chunks of one logical file sort together.
type SplitFile struct {
	complete *LocalFile
	chunks   []*LocalFile
	scatter  *Task
	gather   *Task
}

// NewSplitFile creates a SplitFile for path with nChunks per-chunk sub-files.
func NewSplitFile(path string, nChunks int) *SplitFile {
	dir, base := filepath.Split(filepath.Clean(path))
	chunks := make([]*LocalFile, nChunks)
	for i := range chunks {
		chunks[i] = NewLocalFile(filepath.Join(dir, fmt.Sprintf("chunk_%03d_%s", i, base)))
	}
	return &SplitFile{
		complete: NewLocalFile(path),
		chunks:   chunks,
	}
}

func (f *SplitFile) URL() string                     { return f.complete.URL() }
func (f *SplitFile) LocalPath() string               { return f.complete.LocalPath() }
func (f *SplitFile) ReadOnly() bool                  { return f.complete.ReadOnly() }
func (f *SplitFile) Exists() bool                    { return f.complete.Exists() }
func (f *SplitFile) LastModified() (time.Time, error) { return f.complete.LastModified() }

func (f *SplitFile) ChunkCount() int    { return len(f.chunks) }
func (f *SplitFile) Chunk(i int) Object { return f.chunks[i] }
func (f *SplitFile) Complete() Object   { return f.complete }

// SetScatterTask attaches the task that splits the complete file into chunks.
func (f *SplitFile) SetScatterTask(t *Task) { f.scatter = t }

// SetGatherTask attaches the task that joins the chunks back together.
func (f *SplitFile) SetGatherTask(t *Task) { f.gather = t }

func (f *SplitFile) ScatterTask() *Task { return f.scatter }
func (f *SplitFile) GatherTask() *Task  { return f.gather }
