package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/tsubaki/figura/internal/domain"
)

type categoryResponse struct {
	ID         uuid.UUID         `json:"id"`
	Name       string            `json:"name"`
	Slug       string            `json:"slug"`
	ParentID   *uuid.UUID        `json:"parent_id,omitempty"`
	SortOrder  int32             `json:"sort_order"`
	IsActive   bool              `json:"is_active"`
	IsFeatured bool              `json:"is_featured"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type categoryNodeResponse struct {
	categoryResponse
	Children []categoryNodeResponse `json:"children,omitempty"`
}

func toCategoryResponse(c domain.Category) categoryResponse {
	return categoryResponse{
		ID:         c.ID,
		Name:       c.Name,
		Slug:       c.Slug,
		ParentID:   c.ParentID,
		SortOrder:  c.SortOrder,
		IsActive:   c.IsActive,
		IsFeatured: c.IsFeatured,
		Metadata:   c.Metadata,
	}
}

func toNodeResponse(node *domain.CategoryNode) categoryNodeResponse {
	out := categoryNodeResponse{categoryResponse: toCategoryResponse(node.Category)}
	for _, child := range node.Children {
		out.Children = append(out.Children, toNodeResponse(child))
	}
	return out
}

// ListCategories returns the flat ancestor-ordered list, or the full forest
// with ?tree=1.
func (h *Handler) ListCategories(c echo.Context) error {
	if c.QueryParam("tree") == "1" {
		forest, err := h.categories.GetTree(c.Request().Context())
		if err != nil {
			return err
		}
		out := make([]categoryNodeResponse, 0, len(forest))
		for _, node := range forest {
			out = append(out, toNodeResponse(node))
		}
		return c.JSON(http.StatusOK, out)
	}

	forest, err := h.categories.GetTree(c.Request().Context())
	if err != nil {
		return err
	}
	var out []categoryResponse
	var walk func(nodes []*domain.CategoryNode)
	walk = func(nodes []*domain.CategoryNode) {
		for _, n := range nodes {
			out = append(out, toCategoryResponse(n.Category))
			walk(n.Children)
		}
	}
	walk(forest)
	return c.JSON(http.StatusOK, out)
}

// GetCategory returns one category with its ancestor path.
func (h *Handler) GetCategory(c echo.Context) error {
	ctx := c.Request().Context()

	category, err := h.categories.GetBySlug(ctx, c.Param("slug"))
	if err != nil {
		return err
	}
	ancestors, err := h.categories.GetAncestorPath(ctx, category.ID)
	if err != nil {
		return err
	}

	path := make([]categoryResponse, 0, len(ancestors))
	for _, a := range ancestors {
		path = append(path, toCategoryResponse(a))
	}
	return c.JSON(http.StatusOK, map[string]any{
		"category":  toCategoryResponse(*category),
		"ancestors": path,
	})
}

type createCategoryRequest struct {
	Name       string            `json:"name" validate:"required,max=120"`
	Slug       string            `json:"slug" validate:"omitempty,max=120"`
	ParentID   *uuid.UUID        `json:"parent_id"`
	SortOrder  int32             `json:"sort_order"`
	IsActive   bool              `json:"is_active"`
	IsFeatured bool              `json:"is_featured"`
	Metadata   map[string]string `json:"metadata"`
}

// CreateCategory handles POST /api/categories.
func (h *Handler) CreateCategory(c echo.Context) error {
	var req createCategoryRequest
	if err := h.bind(c, "category.create", &req); err != nil {
		return err
	}

	created, err := h.categories.Create(c.Request().Context(), domain.CreateCategoryParams{
		Name:       req.Name,
		Slug:       req.Slug,
		ParentID:   req.ParentID,
		SortOrder:  req.SortOrder,
		IsActive:   req.IsActive,
		IsFeatured: req.IsFeatured,
		Metadata:   req.Metadata,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toCategoryResponse(*created))
}

type updateCategoryRequest struct {
	Name        *string           `json:"name" validate:"omitempty,max=120"`
	Slug        *string           `json:"slug" validate:"omitempty,max=120"`
	ParentID    *uuid.UUID        `json:"parent_id"`
	ClearParent bool              `json:"clear_parent"`
	SortOrder   *int32            `json:"sort_order"`
	IsActive    *bool             `json:"is_active"`
	IsFeatured  *bool             `json:"is_featured"`
	Metadata    map[string]string `json:"metadata"`
}

// UpdateCategory handles PATCH /api/categories/:id.
func (h *Handler) UpdateCategory(c echo.Context) error {
	id, err := parseID(c, "id", "category.update")
	if err != nil {
		return err
	}
	var req updateCategoryRequest
	if err := h.bind(c, "category.update", &req); err != nil {
		return err
	}

	updated, err := h.categories.Update(c.Request().Context(), id, domain.UpdateCategoryParams{
		Name:        req.Name,
		Slug:        req.Slug,
		SetParent:   req.ParentID,
		ClearParent: req.ClearParent,
		SortOrder:   req.SortOrder,
		IsActive:    req.IsActive,
		IsFeatured:  req.IsFeatured,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toCategoryResponse(*updated))
}

// DeleteCategory handles DELETE /api/categories/:id. ?subtree=1 cascades.
func (h *Handler) DeleteCategory(c echo.Context) error {
	id, err := parseID(c, "id", "category.delete")
	if err != nil {
		return err
	}

	if c.QueryParam("subtree") == "1" {
		err = h.categories.DeleteSubtree(c.Request().Context(), id)
	} else {
		err = h.categories.Delete(c.Request().Context(), id)
	}
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
