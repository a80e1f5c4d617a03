package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Category-specific errors.
var (
	ErrCategoryNotFound  = &Error{Code: ENOTFOUND, Message: "Category not found"}
	ErrParentNotFound    = &Error{Code: ENOTFOUND, Message: "Parent category not found"}
	ErrDuplicateName     = &Error{Code: ECONFLICT, Message: "Category name or slug already exists"}
	ErrSelfParent        = &Error{Code: EINVALID, Message: "Category cannot be its own parent"}
	ErrCircularReference = &Error{Code: ECONFLICT, Message: "Category cannot be parented to one of its descendants"}
	ErrHasChildren       = &Error{Code: ECONFLICT, Message: "Category still has child categories"}
)

// Category represents a node in the catalog category tree.
// Parent chains must be acyclic; name and slug are globally unique
// (name case-insensitively).
type Category struct {
	ID         uuid.UUID
	Name       string
	Slug       string
	ParentID   *uuid.UUID
	SortOrder  int32
	IsActive   bool
	IsFeatured bool
	Metadata   map[string]string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CategoryNode is a category with its children resolved, for tree display.
type CategoryNode struct {
	Category Category
	Children []*CategoryNode
}

// CreateCategoryParams contains parameters for creating a category.
// Slug is auto-derived from Name when empty.
type CreateCategoryParams struct {
	Name       string
	Slug       string
	ParentID   *uuid.UUID
	SortOrder  int32
	IsActive   bool
	IsFeatured bool
	Metadata   map[string]string
}

// UpdateCategoryParams contains parameters for updating a category.
// Pointer fields indicate optional updates (nil = no change).
// ParentID updates use SetParent/ClearParent so that "no change" and
// "move to root" stay distinguishable.
type UpdateCategoryParams struct {
	Name        *string
	Slug        *string
	SetParent   *uuid.UUID
	ClearParent bool
	SortOrder   *int32
	IsActive    *bool
	IsFeatured  *bool
	Metadata    map[string]string
}

// CategoryService provides business logic for the category tree.
type CategoryService interface {
	// Create creates a new category, deriving the slug from the name when absent.
	Create(ctx context.Context, params CreateCategoryParams) (*Category, error)

	// Update mutates a category, re-validating uniqueness and acyclicity
	// on every parent change.
	Update(ctx context.Context, id uuid.UUID, params UpdateCategoryParams) (*Category, error)

	// Delete removes a category. Fails with ErrHasChildren while any
	// category names id as its parent.
	Delete(ctx context.Context, id uuid.UUID) error

	// DeleteSubtree removes a category and all of its descendants,
	// deepest leaves first.
	DeleteSubtree(ctx context.Context, id uuid.UUID) error

	// GetByID retrieves a single category.
	GetByID(ctx context.Context, id uuid.UUID) (*Category, error)

	// GetBySlug retrieves a single category by slug.
	GetBySlug(ctx context.Context, slug string) (*Category, error)

	// GetDescendants returns every category below id in the tree.
	// Traversal is depth-capped; a revisited node reports EINTEGRITY
	// instead of looping.
	GetDescendants(ctx context.Context, id uuid.UUID) ([]Category, error)

	// GetAncestorPath returns the chain from id's parent up to its root,
	// nearest ancestor first. Same integrity guarantees as GetDescendants.
	GetAncestorPath(ctx context.Context, id uuid.UUID) ([]Category, error)

	// GetTree builds the full forest (roots = categories with no parent),
	// children grouped under their parents.
	GetTree(ctx context.Context) ([]*CategoryNode, error)
}
