package records

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/voidshard/galleryimport/internal/utils"
	"github.com/voidshard/galleryimport/pkg/errors"
	"github.com/voidshard/galleryimport/pkg/structs"
)

// Memory is an in process records store.
type Memory struct {
	lock      sync.RWMutex
	galleries map[string]*structs.Gallery
	images    map[string]*structs.Image
	terms     map[string]*structs.Term
	termNames map[string]string
	links     map[string]map[string]bool // gallery -> term ids
}

func NewMemory() *Memory {
	return &Memory{
		galleries: map[string]*structs.Gallery{},
		images:    map[string]*structs.Image{},
		terms:     map[string]*structs.Term{},
		termNames: map[string]string{},
		links:     map[string]map[string]bool{},
	}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) CreateGallery(ctx context.Context, g *structs.Gallery) (string, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if g.ID == "" {
		g.ID = utils.NewRandomID()
	}
	if g.CreatedAt == 0 {
		g.CreatedAt = timeNow()
	}
	cp := copyGallery(g)
	if len(cp.Images) > 0 {
		cp.Representative = cp.Images[0]
	}
	cp.Terms = nil
	m.galleries[g.ID] = cp
	return g.ID, nil
}

func (m *Memory) Gallery(ctx context.Context, id string) (*structs.Gallery, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	g, ok := m.galleries[id]
	if !ok {
		return nil, fmt.Errorf("gallery %s: %w", id, errors.ErrNotFound)
	}
	return m.withTerms(g), nil
}

func (m *Memory) GalleryByExternalID(ctx context.Context, externalID int64) (*structs.Gallery, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	var found *structs.Gallery
	for _, g := range m.galleries {
		if g.ExternalID != externalID || g.DeletedAt != 0 {
			continue
		}
		if found == nil || g.CreatedAt > found.CreatedAt {
			found = g
		}
	}
	if found == nil {
		return nil, fmt.Errorf("gallery with external id %d: %w", externalID, errors.ErrNotFound)
	}
	return m.withTerms(found), nil
}

func (m *Memory) AttachImages(ctx context.Context, galleryID string, imageIDs []string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	g, ok := m.galleries[galleryID]
	if !ok {
		return fmt.Errorf("gallery %s: %w", galleryID, errors.ErrNotFound)
	}
	g.Images = append([]string{}, imageIDs...)
	g.Representative = ""
	if len(imageIDs) > 0 {
		g.Representative = imageIDs[0]
	}
	return nil
}

func (m *Memory) SetGalleryTerms(ctx context.Context, galleryID string, termIDs []string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if _, ok := m.galleries[galleryID]; !ok {
		return fmt.Errorf("gallery %s: %w", galleryID, errors.ErrNotFound)
	}
	set := map[string]bool{}
	for _, t := range termIDs {
		if _, ok := m.terms[t]; !ok {
			return fmt.Errorf("term %s: %w", t, errors.ErrNotFound)
		}
		set[t] = true
	}
	m.links[galleryID] = set
	return nil
}

func (m *Memory) DeleteGallery(ctx context.Context, id string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	g, ok := m.galleries[id]
	if ok && g.DeletedAt == 0 {
		g.DeletedAt = timeNow()
	}
	return nil
}

func (m *Memory) CreateImage(ctx context.Context, img *structs.Image) (string, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if img.ID == "" {
		img.ID = utils.NewRandomID()
	}
	if img.CreatedAt == 0 {
		img.CreatedAt = timeNow()
	}
	cp := *img
	m.images[img.ID] = &cp
	return img.ID, nil
}

func (m *Memory) Image(ctx context.Context, id string) (*structs.Image, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	img, ok := m.images[id]
	if !ok {
		return nil, fmt.Errorf("image %s: %w", id, errors.ErrNotFound)
	}
	cp := *img
	return &cp, nil
}

func (m *Memory) DeleteImage(ctx context.Context, id string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.images, id)
	return nil
}

func (m *Memory) ImageReferenced(ctx context.Context, imageID, excludeGalleryID string) (bool, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	for id, g := range m.galleries {
		if id == excludeGalleryID || g.DeletedAt != 0 {
			continue
		}
		if g.Representative == imageID {
			return true, nil
		}
		for _, i := range g.Images {
			if i == imageID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (m *Memory) FindOrCreateTerm(ctx context.Context, name string) (string, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false, fmt.Errorf("term name: %w", errors.ErrInvalidArg)
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	if id, ok := m.termNames[name]; ok {
		return id, false, nil
	}
	t := &structs.Term{ID: utils.NewRandomID(), Name: name}
	m.terms[t.ID] = t
	m.termNames[name] = t.ID
	return t.ID, true, nil
}

func (m *Memory) Term(ctx context.Context, id string) (*structs.Term, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	t, ok := m.terms[id]
	if !ok {
		return nil, fmt.Errorf("term %s: %w", id, errors.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (m *Memory) TermUsage(ctx context.Context, termID, excludeGalleryID string) (int64, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	count := int64(0)
	for gid, set := range m.links {
		if gid == excludeGalleryID || !set[termID] {
			continue
		}
		if g, ok := m.galleries[gid]; ok && g.DeletedAt == 0 {
			count++
		}
	}
	return count, nil
}

func (m *Memory) DeleteTerm(ctx context.Context, termID string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	t, ok := m.terms[termID]
	if !ok {
		return nil
	}
	delete(m.terms, termID)
	delete(m.termNames, t.Name)
	for _, set := range m.links {
		delete(set, termID)
	}
	return nil
}

func (m *Memory) withTerms(g *structs.Gallery) *structs.Gallery {
	cp := copyGallery(g)
	cp.Terms = []string{}
	for t := range m.links[g.ID] {
		cp.Terms = append(cp.Terms, t)
	}
	sort.Strings(cp.Terms)
	return cp
}

func copyGallery(g *structs.Gallery) *structs.Gallery {
	cp := *g
	cp.Images = append([]string{}, g.Images...)
	cp.Terms = append([]string{}, g.Terms...)
	return &cp
}
