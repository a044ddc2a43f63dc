// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package imagehash

import (
	"archive/zip"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"path"
	"sort"
	"strings"
)

// Entry is one question image loaded from the archive.
type Entry struct {
	ArchivePath string
	Stem        string
	QuestionID  string
	MIMEType    string
	Data        []byte
	Hash        uint64
}

// DataURL encodes the image as a data URL for oracle payloads.
func (e Entry) DataURL() string {
	return "data:" + e.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(e.Data)
}

// Store is an in-memory index of question images from a ZIP archive.
// Filenames follow img_<question_id>_<index>.<ext>.
type Store struct {
	zipPath    string
	entries    []Entry
	byStem     map[string]*Entry
	byQuestion map[string][]*Entry

	// Skipped counts unreadable or unparseable images. They are
	// excluded from clustering rather than failing the run.
	Skipped int
}

// FromZip loads and hashes every image in the archive. Corrupt entries
// are counted and skipped.
func FromZip(zipPath string) (*Store, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("opening images archive %s: %w", zipPath, err)
	}
	defer zr.Close()

	s := &Store{
		zipPath:    zipPath,
		byStem:     make(map[string]*Entry),
		byQuestion: make(map[string][]*Entry),
	}

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		base := path.Base(f.Name)
		ext := path.Ext(base)
		if ext == "" {
			continue
		}
		stem := strings.TrimSuffix(base, ext)
		qid := questionIDFromStem(stem)
		if qid == "" {
			continue
		}

		raw, err := readZipFile(f)
		if err != nil {
			s.Skipped++
			continue
		}
		hash, err := Hash(raw)
		if err != nil {
			s.Skipped++
			continue
		}

		mimeType := mime.TypeByExtension(strings.ToLower(ext))
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}

		s.entries = append(s.entries, Entry{
			ArchivePath: f.Name,
			Stem:        stem,
			QuestionID:  qid,
			MIMEType:    mimeType,
			Data:        raw,
			Hash:        hash,
		})
	}

	for i := range s.entries {
		e := &s.entries[i]
		s.byStem[e.Stem] = e
		s.byQuestion[e.QuestionID] = append(s.byQuestion[e.QuestionID], e)
	}
	for _, list := range s.byQuestion {
		sort.Slice(list, func(a, b int) bool { return list[a].Stem < list[b].Stem })
	}

	return s, nil
}

// ZipPath returns the archive this store was loaded from.
func (s *Store) ZipPath() string { return s.zipPath }

// Len returns the number of readable images.
func (s *Store) Len() int { return len(s.entries) }

// ByStem looks an image up by its filename stem.
func (s *Store) ByStem(stem string) (Entry, bool) {
	e, ok := s.byStem[stem]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// ForQuestion returns the question's images ordered by stem. A question
// with no readable images gets an empty slice and, downstream, no
// image-cluster membership.
func (s *Store) ForQuestion(qid string) []Entry {
	list := s.byQuestion[qid]
	out := make([]Entry, len(list))
	for i, e := range list {
		out[i] = *e
	}
	return out
}

// MissingRefs reports which expected image files are absent from the
// archive. References may carry an extension; lookup goes by stem.
// Missing assets are context for the decision engine, not an error.
func (s *Store) MissingRefs(expected []string) []string {
	var missing []string
	for _, ref := range expected {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		stem := strings.TrimSuffix(path.Base(ref), path.Ext(ref))
		if _, ok := s.byStem[stem]; !ok {
			missing = append(missing, ref)
		}
	}
	return missing
}

// Items returns every readable image as a clustering item, in archive
// order.
func (s *Store) Items() []Item {
	items := make([]Item, len(s.entries))
	for i, e := range s.entries {
		items[i] = Item{ID: e.Stem, ParentID: e.QuestionID, Hash: e.Hash}
	}
	return items
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// questionIDFromStem extracts the question id from an image filename
// stem of the form img_<question_id>_<index>.
func questionIDFromStem(stem string) string {
	if !strings.HasPrefix(stem, "img_") {
		return ""
	}
	remainder := strings.TrimPrefix(stem, "img_")
	idx := strings.LastIndex(remainder, "_")
	if idx <= 0 {
		return ""
	}
	return remainder[:idx]
}
