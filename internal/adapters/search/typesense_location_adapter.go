package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
	"github.com/zatekoja/locationhierarchy/internal/domain/entities"
	"github.com/zatekoja/locationhierarchy/internal/domain/repositories"
	tsclient "github.com/zatekoja/locationhierarchy/internal/infrastructure/clients/typesense"
)

const defaultSearchLimit = 20

// TypesenseLocationAdapter implements location search using Typesense
type TypesenseLocationAdapter struct {
	client *tsclient.Client
}

// Ensure TypesenseLocationAdapter implements LocationSearchRepository
var _ repositories.LocationSearchRepository = (*TypesenseLocationAdapter)(nil)

// NewTypesenseLocationAdapter creates a new Typesense location adapter
func NewTypesenseLocationAdapter(client *tsclient.Client) *TypesenseLocationAdapter {
	return &TypesenseLocationAdapter{client: client}
}

// InitSchema ensures the locations collection exists
func (a *TypesenseLocationAdapter) InitSchema(ctx context.Context) error {
	return a.client.InitSchema(ctx)
}

// Index upserts a location document
func (a *TypesenseLocationAdapter) Index(ctx context.Context, location *entities.Location) error {
	_, err := a.client.Client().Collection(tsclient.LocationsCollection).Documents().Upsert(ctx, buildLocationDocument(location))
	if err != nil {
		return fmt.Errorf("failed to index location: %w", err)
	}
	return nil
}

// Delete removes a location from the index
func (a *TypesenseLocationAdapter) Delete(ctx context.Context, id string) error {
	_, err := a.client.Client().Collection(tsclient.LocationsCollection).Document(id).Delete(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete location from index: %w", err)
	}
	return nil
}

// Search returns the keys of matching locations, best match first
func (a *TypesenseLocationAdapter) Search(ctx context.Context, params repositories.LocationSearchParams) ([]string, error) {
	result, err := a.client.Client().Collection(tsclient.LocationsCollection).Documents().Search(ctx, buildSearchParams(params))
	if err != nil {
		return nil, fmt.Errorf("failed to search locations: %w", err)
	}

	ids := []string{}
	if result.Hits == nil {
		return ids, nil
	}
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		if id, ok := (*hit.Document)["id"].(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func buildLocationDocument(location *entities.Location) map[string]interface{} {
	tags := make([]string, 0, len(location.Tags))
	for _, tag := range location.Tags {
		tags = append(tags, tag.Display)
	}

	document := map[string]interface{}{
		"id":          location.Key(),
		"name":        location.Name,
		"display":     location.Display,
		"description": location.Description,
		"tags":        tags,
		"is_root":     location.IsRoot(),
		"updated_at":  location.UpdatedAt.Unix(),
	}
	if !location.IsRoot() {
		document["parent_id"] = location.ParentLocation.UUID
	}
	return document
}

func buildSearchParams(params repositories.LocationSearchParams) *api.SearchCollectionParams {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	query := strings.TrimSpace(params.Query)
	if query == "" {
		query = "*"
	}

	searchParams := &api.SearchCollectionParams{
		Q:       pointer.String(query),
		QueryBy: pointer.String("name,display,description"),
		Page:    pointer.Int(offset/limit + 1),
		PerPage: pointer.Int(limit),
	}
	if params.TagDisplay != "" {
		searchParams.FilterBy = pointer.String(fmt.Sprintf("tags:=[`%s`]", params.TagDisplay))
	}
	return searchParams
}

// Reindex indexes every location and returns how many succeeded.
// The first failure is returned once the whole collection has been attempted.
func (a *TypesenseLocationAdapter) Reindex(ctx context.Context, locations []entities.Location) (int, error) {
	var firstErr error
	indexed := 0
	for i := range locations {
		if err := ctx.Err(); err != nil {
			return indexed, err
		}
		if err := a.Index(ctx, &locations[i]); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("location %s: %w", locations[i].Key(), err)
			}
			continue
		}
		indexed++
	}
	return indexed, firstErr
}
