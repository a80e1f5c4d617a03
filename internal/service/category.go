package service

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tsubaki/figura/internal/domain"
)

// maxTreeDepth bounds every parent-chain and subtree traversal. A healthy
// catalog never approaches it; hitting the cap means the stored tree is
// corrupt and the walk reports integrity failure instead of looping.
const maxTreeDepth = 64

// Categories implements domain.CategoryService over a CategoryStore.
// Structural validation (acyclicity, child counting) runs in Go over a
// snapshot of the tree; the database's unique indexes are the uniqueness
// backstop under concurrent writers.
type Categories struct {
	store  CategoryStore
	logger zerolog.Logger
}

// NewCategories creates the category service.
func NewCategories(store CategoryStore, logger zerolog.Logger) *Categories {
	return &Categories{
		store:  store,
		logger: logger.With().Str("component", "category_service").Logger(),
	}
}

var _ domain.CategoryService = (*Categories)(nil)

// Create creates a new category, deriving the slug from the name when absent.
func (s *Categories) Create(ctx context.Context, params domain.CreateCategoryParams) (*domain.Category, error) {
	const op = "category.create"

	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, domain.Invalid(op, "Category name is required")
	}

	slug := params.Slug
	if slug == "" {
		slug = slugify(name)
	}
	if slug == "" {
		return nil, domain.Invalid(op, "Category slug cannot be derived from name")
	}

	if params.ParentID != nil {
		if _, err := s.store.GetByID(ctx, *params.ParentID); err != nil {
			if domain.IsCode(err, domain.ENOTFOUND) {
				return nil, domain.ErrParentNotFound
			}
			return nil, err
		}
	}

	metadata := params.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}

	created, err := s.store.Insert(ctx, domain.Category{
		ID:         uuid.New(),
		Name:       name,
		Slug:       slug,
		ParentID:   params.ParentID,
		SortOrder:  params.SortOrder,
		IsActive:   params.IsActive,
		IsFeatured: params.IsFeatured,
		Metadata:   metadata,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("category_id", created.ID.String()).Str("slug", created.Slug).Msg("category created")
	return created, nil
}

// Update mutates a category. Parent changes are re-validated for
// self-parenting and cycles before anything is written.
func (s *Categories) Update(ctx context.Context, id uuid.UUID, params domain.UpdateCategoryParams) (*domain.Category, error) {
	const op = "category.update"

	existing, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if params.Name != nil {
		name := strings.TrimSpace(*params.Name)
		if name == "" {
			return nil, domain.Invalid(op, "Category name cannot be empty")
		}
		existing.Name = name
	}
	if params.Slug != nil {
		if *params.Slug == "" {
			return nil, domain.Invalid(op, "Category slug cannot be empty")
		}
		existing.Slug = *params.Slug
	}
	if params.SortOrder != nil {
		existing.SortOrder = *params.SortOrder
	}
	if params.IsActive != nil {
		existing.IsActive = *params.IsActive
	}
	if params.IsFeatured != nil {
		existing.IsFeatured = *params.IsFeatured
	}
	if params.Metadata != nil {
		existing.Metadata = params.Metadata
	}

	switch {
	case params.ClearParent:
		existing.ParentID = nil
	case params.SetParent != nil:
		newParent := *params.SetParent
		if newParent == id {
			return nil, domain.ErrSelfParent
		}
		if _, err := s.store.GetByID(ctx, newParent); err != nil {
			if domain.IsCode(err, domain.ENOTFOUND) {
				return nil, domain.ErrParentNotFound
			}
			return nil, err
		}
		descendants, err := s.GetDescendants(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, d := range descendants {
			if d.ID == newParent {
				return nil, domain.ErrCircularReference
			}
		}
		existing.ParentID = &newParent
	}

	return s.store.Update(ctx, *existing)
}

// Delete removes a category. Fails while any category names it as parent.
func (s *Categories) Delete(ctx context.Context, id uuid.UUID) error {
	all, err := s.store.ListAll(ctx)
	if err != nil {
		return err
	}
	for _, c := range all {
		if c.ParentID != nil && *c.ParentID == id {
			return domain.ErrHasChildren
		}
	}
	return s.store.Delete(ctx, id)
}

// DeleteSubtree removes a category and all of its descendants, deepest
// leaves first so no delete ever orphans a child.
func (s *Categories) DeleteSubtree(ctx context.Context, id uuid.UUID) error {
	descendants, err := s.GetDescendants(ctx, id)
	if err != nil {
		return err
	}

	for i := len(descendants) - 1; i >= 0; i-- {
		if err := s.store.Delete(ctx, descendants[i].ID); err != nil && !domain.IsCode(err, domain.ENOTFOUND) {
			return err
		}
	}
	return s.store.Delete(ctx, id)
}

// GetByID retrieves a single category.
func (s *Categories) GetByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	return s.store.GetByID(ctx, id)
}

// GetBySlug retrieves a single category by slug.
func (s *Categories) GetBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	return s.store.GetBySlug(ctx, slug)
}

// GetDescendants returns every category below id, breadth-first, siblings
// ordered by sort order then name. A revisited node or a chain deeper than
// maxTreeDepth reports integrity failure instead of looping.
func (s *Categories) GetDescendants(ctx context.Context, id uuid.UUID) ([]domain.Category, error) {
	const op = "category.descendants"

	if _, err := s.store.GetByID(ctx, id); err != nil {
		return nil, err
	}

	all, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	children := childIndex(all)

	visited := map[uuid.UUID]bool{id: true}
	frontier := []uuid.UUID{id}
	var out []domain.Category

	for depth := 0; len(frontier) > 0; depth++ {
		if depth > maxTreeDepth {
			s.logger.Error().Str("category_id", id.String()).Msg("category tree exceeds depth cap")
			return nil, domain.Integrity(op, "Category tree exceeds maximum depth")
		}
		var next []uuid.UUID
		for _, parent := range frontier {
			for _, child := range children[parent] {
				if visited[child.ID] {
					s.logger.Error().Str("category_id", child.ID.String()).Msg("cycle detected in category tree")
					return nil, domain.Integrity(op, "Cycle detected in category tree")
				}
				visited[child.ID] = true
				out = append(out, child)
				next = append(next, child.ID)
			}
		}
		frontier = next
	}
	return out, nil
}

// GetAncestorPath returns the chain from id's parent up to its root,
// nearest ancestor first.
func (s *Categories) GetAncestorPath(ctx context.Context, id uuid.UUID) ([]domain.Category, error) {
	const op = "category.ancestors"

	start, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	all, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]domain.Category, len(all))
	for _, c := range all {
		byID[c.ID] = c
	}

	visited := map[uuid.UUID]bool{id: true}
	var path []domain.Category

	cur := *start
	for cur.ParentID != nil {
		if len(path) >= maxTreeDepth {
			s.logger.Error().Str("category_id", id.String()).Msg("ancestor chain exceeds depth cap")
			return nil, domain.Integrity(op, "Category tree exceeds maximum depth")
		}
		parent, ok := byID[*cur.ParentID]
		if !ok {
			// snapshot raced a concurrent delete; the chain ends here
			break
		}
		if visited[parent.ID] {
			s.logger.Error().Str("category_id", parent.ID.String()).Msg("cycle detected in parent chain")
			return nil, domain.Integrity(op, "Cycle detected in category tree")
		}
		visited[parent.ID] = true
		path = append(path, parent)
		cur = parent
	}
	return path, nil
}

// GetTree builds the full forest: roots are categories with no parent,
// children grouped under their parents, siblings ordered by sort order
// then name.
func (s *Categories) GetTree(ctx context.Context) ([]*domain.CategoryNode, error) {
	all, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	nodes := make(map[uuid.UUID]*domain.CategoryNode, len(all))
	for _, c := range all {
		nodes[c.ID] = &domain.CategoryNode{Category: c}
	}

	var roots []*domain.CategoryNode
	for _, c := range all {
		node := nodes[c.ID]
		if c.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[*c.ParentID]
		if !ok {
			// dangling parent pointer; surface the node rather than drop it
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	sortNodes(roots)
	for _, n := range nodes {
		sortNodes(n.Children)
	}
	return roots, nil
}

func sortNodes(nodes []*domain.CategoryNode) {
	sort.Slice(nodes, func(i, j int) bool {
		a, b := nodes[i].Category, nodes[j].Category
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		return a.Name < b.Name
	})
}

// childIndex groups categories under their parent id, siblings ordered by
// sort order then name.
func childIndex(all []domain.Category) map[uuid.UUID][]domain.Category {
	idx := make(map[uuid.UUID][]domain.Category)
	for _, c := range all {
		if c.ParentID == nil {
			continue
		}
		idx[*c.ParentID] = append(idx[*c.ParentID], c)
	}
	for parent := range idx {
		siblings := idx[parent]
		sort.Slice(siblings, func(i, j int) bool {
			if siblings[i].SortOrder != siblings[j].SortOrder {
				return siblings[i].SortOrder < siblings[j].SortOrder
			}
			return siblings[i].Name < siblings[j].Name
		})
	}
	return idx
}

// slugify lowercases and collapses non-alphanumeric runs into hyphens.
func slugify(s string) string {
	var b strings.Builder
	lastHyphen := true // suppress leading hyphen
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
