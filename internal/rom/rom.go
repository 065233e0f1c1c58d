// Package rom scans mounted filesystems for MT-32-family control and
// PCM ROM images and catalogues them by category, grounded on
// mt32-pi's CROMManager
// (original_source/include/rommanager.h, src/rommanager.cpp). Mount
// points are abstracted behind fs.FS so tests run against an in-memory
// filesystem instead of real storage.
package rom

import (
	"io/fs"
	"path"
	"strings"
)

// maxImageSize caps a candidate ROM read, matching the source's
// defensive read-size limit.
const maxImageSize = 1 << 20

// Category is one of the five ROM slots tracked by the manager (§ DATA
// MODEL: "old-control, new-control, L-control, mt32-pcm, L-pcm").
type Category int

const (
	OldControl Category = iota
	NewControl
	LControl
	Mt32PCM
	LPCM

	numCategories
)

// Set is the finite selectable ROM combination (§ DATA MODEL).
type Set int

const (
	Mt32Old Set = iota
	Mt32New
	CmL
	Any
)

// Image is a validated, loaded ROM image.
type Image struct {
	Path      string
	ShortName string
	Data      []byte
}

// Validator is the vendor library's role in accepting or rejecting a
// candidate file and sorting it into a category (out of scope per §1;
// adapters and tests supply a concrete implementation).
type Validator interface {
	Validate(data []byte) (cat Category, shortName string, ok bool)
}

// Manager holds at most one image per category; Scan replaces
// whatever was previously in a category outright — there is no
// explicit free step in a garbage-collected host, unlike the manual
// zone-allocator ownership the source requires.
type Manager struct {
	images [numCategories]*Image
}

// New returns an empty Manager.
func New() *Manager {
	return &Manager{}
}

// Scan walks "roms/" under every mount in order, reading and
// validating every regular file up to maxImageSize. Accepted images
// are stored into their category slot, last mount wins.
func (m *Manager) Scan(mounts []fs.FS, v Validator) error {
	for _, mount := range mounts {
		if err := m.scanMount(mount, v); err != nil {
			return err
		}
	}

	return nil
}

func (m *Manager) scanMount(mount fs.FS, v Validator) error {
	const root = "roms"

	entries, err := fs.ReadDir(mount, root)
	if err != nil {
		if isNotExist(err) {
			return nil
		}

		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		p := path.Join(root, entry.Name())

		data, err := fs.ReadFile(mount, p)
		if err != nil {
			continue
		}

		if len(data) > maxImageSize {
			data = data[:maxImageSize]
		}

		cat, shortName, ok := v.Validate(data)
		if !ok {
			continue
		}

		m.images[cat] = &Image{Path: p, ShortName: shortName, Data: data}
	}

	return nil
}

func isNotExist(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "no such file") ||
		strings.Contains(err.Error(), "file does not exist"))
}

// Have reports whether the category pair needed for set is fully
// present. Any is satisfied if any one of the three concrete sets is
// satisfied.
func (m *Manager) Have(set Set) bool {
	switch set {
	case Mt32Old:
		return m.images[OldControl] != nil && m.images[Mt32PCM] != nil
	case Mt32New:
		return m.images[NewControl] != nil && m.images[Mt32PCM] != nil
	case CmL:
		return m.images[LControl] != nil && m.images[LPCM] != nil
	case Any:
		return m.Have(Mt32Old) || m.Have(Mt32New) || m.Have(CmL)
	default:
		return false
	}
}

// HaveAll reports whether every one of the five categories holds an
// image; used only during scan diagnostics (§ DATA MODEL, "All").
func (m *Manager) HaveAll() bool {
	for _, img := range m.images {
		if img == nil {
			return false
		}
	}

	return true
}

// Get resolves request to a concrete set and its (control, pcm) image
// pair. Any resolves in preference order old-MT32 -> new-MT32 -> CM-L.
func (m *Manager) Get(request Set) (chosen Set, control, pcm *Image, ok bool) {
	if request == Any {
		for _, s := range []Set{Mt32Old, Mt32New, CmL} {
			if m.Have(s) {
				request = s
				break
			}
		}

		if request == Any {
			return Any, nil, nil, false
		}
	}

	if !m.Have(request) {
		return request, nil, nil, false
	}

	switch request {
	case Mt32Old:
		return request, m.images[OldControl], m.images[Mt32PCM], true
	case Mt32New:
		return request, m.images[NewControl], m.images[Mt32PCM], true
	case CmL:
		return request, m.images[LControl], m.images[LPCM], true
	default:
		return request, nil, nil, false
	}
}

// NextSet cycles current through {Mt32Old, Mt32New, CmL} in that
// order, skipping sets that are not present, and wrapping around. If
// no set is present it returns current unchanged with ok false.
func (m *Manager) NextSet(current Set) (next Set, ok bool) {
	order := []Set{Mt32Old, Mt32New, CmL}

	start := 0

	for i, s := range order {
		if s == current {
			start = i
			break
		}
	}

	for i := 1; i <= len(order); i++ {
		candidate := order[(start+i)%len(order)]
		if m.Have(candidate) {
			return candidate, true
		}
	}

	return current, false
}
