package bank

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/simjay/celor/internal/constraint"
	"github.com/simjay/celor/internal/patch"
	"github.com/simjay/celor/internal/wire"
)

// FileStore persists the bank as a single JSON document at Path. Save
// writes to a temp file in the same directory and renames it
// into place, so a crash mid-write never leaves a half-written bank file
// behind.
type FileStore struct {
	Path string
}

// NewFileStore builds a FileStore rooted at path. The file need not exist
// yet; Load treats a missing file as an empty bank.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

type wireDocument struct {
	Entries []wireEntry `json:"entries"`
}

type wireEntry struct {
	Signature            wireSignature      `json:"signature"`
	Template             wire.Template      `json:"template"`
	HoleSpace            wire.OrderedObject `json:"hole_space"`
	LearnedConstraints   []wireConstraint   `json:"learned_constraints"`
	SuccessfulAssignment map[string]any     `json:"successful_assignment"`
	Metadata             wireMetadata       `json:"metadata"`
}

type wireMetadata struct {
	SuccessCount    int       `json:"success_count"`
	CandidatesTried int       `json:"candidates_tried"`
	FirstUsed       time.Time `json:"first_used"`
	LastUsed        time.Time `json:"last_used"`
}

// Load reads and parses the backing file. A missing or empty file is not
// an error (a fresh bank starts empty); a present-but-unparseable file is,
// and is surfaced to bank.New as a CorruptedError.
func (f *FileStore) Load() ([]*Entry, error) {
	data, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("bank: reading %s: %w", f.Path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var doc wireDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("bank: parsing %s: %w", f.Path, err)
	}

	entries := make([]*Entry, 0, len(doc.Entries))
	for i, we := range doc.Entries {
		e, err := decodeEntry(we)
		if err != nil {
			return nil, fmt.Errorf("bank: decoding entry %d of %s: %w", i, f.Path, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Save writes entries atomically: marshal to a temp file in the target
// directory, fsync, then rename over the destination.
func (f *FileStore) Save(entries []*Entry) error {
	doc := wireDocument{Entries: make([]wireEntry, len(entries))}
	for i, e := range entries {
		we, err := encodeEntry(e)
		if err != nil {
			return fmt.Errorf("bank: encoding entry for %q: %w", e.Signature.Key(), err)
		}
		doc.Entries[i] = we
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("bank: marshalling store: %w", err)
	}

	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("bank: creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".bank-*.tmp")
	if err != nil {
		return fmt.Errorf("bank: creating temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("bank: writing %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("bank: syncing %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("bank: closing %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, f.Path); err != nil {
		return fmt.Errorf("bank: renaming %s to %s: %w", tmpPath, f.Path, err)
	}
	return nil
}

func encodeEntry(e *Entry) (wireEntry, error) {
	wt, err := encodeTemplate(e.Template)
	if err != nil {
		return wireEntry{}, err
	}
	hs, err := encodeHoleSpace(e.HoleSpace)
	if err != nil {
		return wireEntry{}, err
	}
	wc := make([]wireConstraint, len(e.LearnedConstraints))
	for i, c := range e.LearnedConstraints {
		enc, err := encodeConstraint(c)
		if err != nil {
			return wireEntry{}, err
		}
		wc[i] = enc
	}
	assignment := make(map[string]any, len(e.SuccessfulAssignment))
	for k, v := range e.SuccessfulAssignment {
		assignment[k] = v
	}
	return wireEntry{
		Signature:            encodeSignature(e.Signature),
		Template:             wt,
		HoleSpace:            hs,
		LearnedConstraints:   wc,
		SuccessfulAssignment: assignment,
		Metadata: wireMetadata{
			SuccessCount:    e.SuccessCount,
			CandidatesTried: e.CandidatesTried,
			FirstUsed:       e.FirstUsed,
			LastUsed:        e.LastUsed,
		},
	}, nil
}

func decodeEntry(we wireEntry) (*Entry, error) {
	tmpl, err := decodeTemplate(we.Template)
	if err != nil {
		return nil, err
	}
	space, err := decodeHoleSpace(we.HoleSpace)
	if err != nil {
		return nil, err
	}

	learned := make([]constraint.Constraint, 0, len(we.LearnedConstraints))
	for _, wc := range we.LearnedConstraints {
		c, err := decodeConstraint(wc)
		if err != nil {
			return nil, err
		}
		learned = append(learned, c)
	}

	assignment := make(patch.Assignment, len(we.SuccessfulAssignment))
	for k, v := range we.SuccessfulAssignment {
		assignment[k] = v
	}

	return &Entry{
		Signature:            decodeSignature(we.Signature),
		Template:             tmpl,
		HoleSpace:            space,
		LearnedConstraints:   learned,
		SuccessfulAssignment: assignment,
		SuccessCount:         we.Metadata.SuccessCount,
		CandidatesTried:      we.Metadata.CandidatesTried,
		FirstUsed:            we.Metadata.FirstUsed,
		LastUsed:             we.Metadata.LastUsed,
	}, nil
}
