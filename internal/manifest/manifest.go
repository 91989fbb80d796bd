package manifest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// FileName is the manifest document name inside a book workspace.
const FileName = "manifest.json"

// ErrUnreadable marks a manifest that exists but cannot be parsed or fails
// schema validation. Callers treat it as fatal to the job.
var ErrUnreadable = errors.New("manifest unreadable")

//go:embed schema.json
var schemaJSON string

var documentSchema = jsonschema.MustCompileString("manifest/schema.json", schemaJSON)

// Settings is the snapshot of conversion settings recorded when the
// manifest is created; resumed runs reuse it unchanged.
type Settings struct {
	Language     string `json:"language"`
	OptimizeMode string `json:"optimize_mode"`
	ErrorPolicy  string `json:"error_policy"`
	FrontCover   *int   `json:"front_cover,omitempty"`
	BackCover    *int   `json:"back_cover,omitempty"`
}

// Document is the durable per-book record of stage completion.
type Document struct {
	BookID       string                `json:"book_id"`
	Title        string                `json:"title"`
	CurrentStage Stage                 `json:"current_stage"`
	Stages       map[Stage]StageStatus `json:"stages"`
	Settings     Settings              `json:"settings"`
}

// Manifest binds a Document to its on-disk location.
type Manifest struct {
	path string
	doc  Document
}

// Path returns the manifest location for a book workspace.
func Path(bookDir string) string {
	return filepath.Join(bookDir, FileName)
}

// Exists reports whether a manifest document is present in bookDir.
func Exists(bookDir string) bool {
	info, err := os.Stat(Path(bookDir))
	return err == nil && !info.IsDir()
}

// Create initializes a fresh manifest with every stage pending and
// current_stage at validate, discarding any prior checkpoint.
func Create(bookDir, bookID, title string, settings Settings) (*Manifest, error) {
	if err := os.MkdirAll(bookDir, 0o755); err != nil {
		return nil, fmt.Errorf("create book directory: %w", err)
	}
	stages := make(map[Stage]StageStatus, len(stageOrder))
	for _, stage := range stageOrder {
		stages[stage] = StatusPending
	}
	m := &Manifest{
		path: Path(bookDir),
		doc: Document{
			BookID:       bookID,
			Title:        title,
			CurrentStage: StageValidate,
			Stages:       stages,
			Settings:     settings,
		},
	}
	if err := m.save(); err != nil {
		return nil, err
	}
	return m, nil
}

// Open loads and validates an existing manifest document.
func Open(bookDir string) (*Manifest, error) {
	path := Path(bookDir)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
	}
	if err := documentSchema.Validate(raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
	}
	return &Manifest{path: path, doc: doc}, nil
}

// Path returns the on-disk location of the manifest document.
func (m *Manifest) Path() string {
	return m.path
}

// BookID returns the owning book identifier.
func (m *Manifest) BookID() string {
	return m.doc.BookID
}

// Title returns the recorded book title.
func (m *Manifest) Title() string {
	return m.doc.Title
}

// CurrentStage returns the stage the pipeline last pointed at.
func (m *Manifest) CurrentStage() Stage {
	return m.doc.CurrentStage
}

// Settings returns the settings snapshot recorded at creation.
func (m *Manifest) Settings() Settings {
	return m.doc.Settings
}

// StageStatus returns the checkpoint state of one stage.
func (m *Manifest) StageStatus(stage Stage) StageStatus {
	status, ok := m.doc.Stages[stage]
	if !ok {
		return StatusPending
	}
	return status
}

// Document returns a copy of the underlying document.
func (m *Manifest) Document() Document {
	doc := m.doc
	doc.Stages = make(map[Stage]StageStatus, len(m.doc.Stages))
	for stage, status := range m.doc.Stages {
		doc.Stages[stage] = status
	}
	return doc
}

// SetStageStatus records a stage transition and moves the current_stage
// pointer, persisting the document atomically so a concurrent reader never
// observes a half-written manifest.
func (m *Manifest) SetStageStatus(stage Stage, status StageStatus) error {
	if !stage.Valid() {
		return fmt.Errorf("unknown stage %q", stage)
	}
	m.doc.CurrentStage = stage
	m.doc.Stages[stage] = status
	return m.save()
}

// ResolveResumeStage returns the first stage in the fixed order whose
// status is not done; when every stage is done it returns the last stage.
func (m *Manifest) ResolveResumeStage() Stage {
	for _, stage := range stageOrder {
		if m.StageStatus(stage) != StatusDone {
			return stage
		}
	}
	return stageOrder[len(stageOrder)-1]
}

// ReadCurrentStage loads only the current_stage pointer from a book
// workspace, returning ok=false when no manifest exists.
func ReadCurrentStage(bookDir string) (Stage, bool, error) {
	if !Exists(bookDir) {
		return "", false, nil
	}
	m, err := Open(bookDir)
	if err != nil {
		return "", false, err
	}
	return m.doc.CurrentStage, true, nil
}

// save writes the document through a temp file and rename so readers see
// either the old or the new manifest, never a partial write.
func (m *Manifest) save() error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m.doc); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(m.path), ".manifest-*.json")
	if err != nil {
		return fmt.Errorf("create manifest temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close manifest temp file: %w", err)
	}
	if err := os.Rename(tmpPath, m.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace manifest: %w", err)
	}
	return nil
}
