package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/zatekoja/locationhierarchy/internal/domain/entities"
	"github.com/zatekoja/locationhierarchy/internal/domain/repositories"
	"github.com/zatekoja/locationhierarchy/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/locationhierarchy/pkg/errors"
)

const (
	locationsTable          = "locations"
	locationTagsTable       = "location_tags"
	locationAttributesTable = "location_attributes"
)

var locationSchema = []string{
	`CREATE TABLE IF NOT EXISTS locations (
		id TEXT PRIMARY KEY,
		uuid TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL,
		display TEXT,
		description TEXT,
		parent_uuid TEXT,
		are_child_locations_beds BOOLEAN NOT NULL DEFAULT FALSE,
		are_child_locations_cabinets BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_locations_parent_uuid ON locations (parent_uuid)`,
	`CREATE TABLE IF NOT EXISTS location_tags (
		location_id TEXT NOT NULL REFERENCES locations (id) ON DELETE CASCADE,
		position INT NOT NULL,
		uuid TEXT,
		name TEXT NOT NULL,
		display TEXT NOT NULL,
		PRIMARY KEY (location_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS location_attributes (
		location_id TEXT NOT NULL REFERENCES locations (id) ON DELETE CASCADE,
		position INT NOT NULL,
		uuid TEXT,
		type_uuid TEXT,
		type_display TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (location_id, position)
	)`,
}

// LocationAdapter implements LocationRepository on PostgreSQL
type LocationAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewLocationAdapter creates a new location adapter
func NewLocationAdapter(client *postgres.Client) *LocationAdapter {
	return &LocationAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

var _ repositories.LocationRepository = (*LocationAdapter)(nil)

// EnsureSchema creates the location tables when they do not exist
func (a *LocationAdapter) EnsureSchema(ctx context.Context) error {
	for _, statement := range locationSchema {
		if _, err := a.client.DB().ExecContext(ctx, statement); err != nil {
			return apperrors.NewInternalError("failed to create location schema", err)
		}
	}
	return nil
}

// List retrieves every location with tags, attributes and child references resolved
func (a *LocationAdapter) List(ctx context.Context) ([]entities.Location, error) {
	locations, err := a.selectLocations(ctx, nil)
	if err != nil {
		return nil, err
	}
	if err := a.attachDetails(ctx, locations, nil); err != nil {
		return nil, err
	}

	linkChildren(locations, locations)
	return locations, nil
}

// GetByID retrieves a location by ID or UUID
func (a *LocationAdapter) GetByID(ctx context.Context, id string) (*entities.Location, error) {
	locations, err := a.selectLocations(ctx, goqu.Or(goqu.C("id").Eq(id), goqu.C("uuid").Eq(id)))
	if err != nil {
		return nil, err
	}
	if len(locations) == 0 {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("location with id %s not found", id))
	}

	found := locations[:1]
	if err := a.attachDetails(ctx, found, []string{found[0].ID}); err != nil {
		return nil, err
	}

	parentKeys := []string{found[0].ID, found[0].UUID}
	children, err := a.selectLocations(ctx, goqu.C("parent_uuid").In(parentKeys))
	if err != nil {
		return nil, err
	}
	linkChildren(found, children)

	location := found[0]
	return &location, nil
}

// Upsert creates or replaces a location together with its tags and attributes.
// A location without a UUID is created with its ID as UUID; an existing row
// keeps the UUID it has.
func (a *LocationAdapter) Upsert(ctx context.Context, location *entities.Location) error {
	if location.ID == "" {
		return apperrors.NewValidationError("location id is required")
	}
	keepUUID := location.UUID == ""
	if keepUUID {
		location.UUID = location.ID
	}

	now := time.Now().UTC()
	if location.CreatedAt.IsZero() {
		location.CreatedAt = now
	}
	location.UpdatedAt = now

	var parent sql.NullString
	if !location.IsRoot() {
		parent = sql.NullString{String: location.ParentLocation.UUID, Valid: true}
	}

	record := goqu.Record{
		"id":                           location.ID,
		"uuid":                         location.UUID,
		"name":                         location.Name,
		"display":                      nullString(location.Display),
		"description":                  nullString(location.Description),
		"parent_uuid":                  parent,
		"are_child_locations_beds":     location.AreChildLocationsBeds,
		"are_child_locations_cabinets": location.AreChildLocationsCabinets,
		"created_at":                   location.CreatedAt,
		"updated_at":                   location.UpdatedAt,
	}

	update := goqu.Record{
		"name":                         goqu.L("EXCLUDED.name"),
		"display":                      goqu.L("EXCLUDED.display"),
		"description":                  goqu.L("EXCLUDED.description"),
		"parent_uuid":                  goqu.L("EXCLUDED.parent_uuid"),
		"are_child_locations_beds":     goqu.L("EXCLUDED.are_child_locations_beds"),
		"are_child_locations_cabinets": goqu.L("EXCLUDED.are_child_locations_cabinets"),
		"updated_at":                   goqu.L("EXCLUDED.updated_at"),
	}
	if !keepUUID {
		update["uuid"] = goqu.L("EXCLUDED.uuid")
	}

	upsert, _, err := a.db.Insert(locationsTable).Rows(record).OnConflict(goqu.DoUpdate("id", update)).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build upsert query", err)
	}

	statements := []string{upsert}
	for _, table := range []string{locationTagsTable, locationAttributesTable} {
		query, _, err := a.db.Delete(table).Where(goqu.C("location_id").Eq(location.ID)).ToSQL()
		if err != nil {
			return apperrors.NewInternalError("failed to build delete query", err)
		}
		statements = append(statements, query)
	}

	if len(location.Tags) > 0 {
		rows := make([]interface{}, 0, len(location.Tags))
		for i, tag := range location.Tags {
			rows = append(rows, goqu.Record{
				"location_id": location.ID,
				"position":    i,
				"uuid":        nullString(tag.UUID),
				"name":        tag.Name,
				"display":     tag.Display,
			})
		}
		query, _, err := a.db.Insert(locationTagsTable).Rows(rows...).ToSQL()
		if err != nil {
			return apperrors.NewInternalError("failed to build tag insert query", err)
		}
		statements = append(statements, query)
	}

	if len(location.Attributes) > 0 {
		rows := make([]interface{}, 0, len(location.Attributes))
		for i, attribute := range location.Attributes {
			rows = append(rows, goqu.Record{
				"location_id":  location.ID,
				"position":     i,
				"uuid":         nullString(attribute.UUID),
				"type_uuid":    nullString(attribute.AttributeType.UUID),
				"type_display": attribute.AttributeType.Display,
				"value":        attribute.Value,
			})
		}
		query, _, err := a.db.Insert(locationAttributesTable).Rows(rows...).ToSQL()
		if err != nil {
			return apperrors.NewInternalError("failed to build attribute insert query", err)
		}
		statements = append(statements, query)
	}

	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return apperrors.NewInternalError("failed to begin transaction", err)
	}
	for _, statement := range statements {
		if _, err := tx.ExecContext(ctx, statement); err != nil {
			_ = tx.Rollback()
			return apperrors.NewInternalError("failed to upsert location", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return apperrors.NewInternalError("failed to commit location upsert", err)
	}

	return nil
}

// Delete deletes a location; tags and attributes cascade
func (a *LocationAdapter) Delete(ctx context.Context, id string) error {
	query, _, err := a.db.Delete(locationsTable).Where(goqu.C("id").Eq(id)).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query)
	if err != nil {
		return apperrors.NewInternalError("failed to delete location", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("location with id %s not found", id))
	}

	return nil
}

func (a *LocationAdapter) selectLocations(ctx context.Context, filter exp.Expression) ([]entities.Location, error) {
	ds := a.db.Select(
		"id", "uuid", "name", "display", "description", "parent_uuid",
		"are_child_locations_beds", "are_child_locations_cabinets", "created_at", "updated_at",
	).From(locationsTable)
	if filter != nil {
		ds = ds.Where(filter)
	}

	query, args, err := ds.Order(goqu.C("created_at").Asc(), goqu.C("id").Asc()).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list locations", err)
	}
	defer rows.Close()

	locations := []entities.Location{}
	for rows.Next() {
		var location entities.Location
		var display, description, parent sql.NullString

		err := rows.Scan(
			&location.ID,
			&location.UUID,
			&location.Name,
			&display,
			&description,
			&parent,
			&location.AreChildLocationsBeds,
			&location.AreChildLocationsCabinets,
			&location.CreatedAt,
			&location.UpdatedAt,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan location", err)
		}

		location.Display = display.String
		location.Description = description.String
		if parent.Valid && parent.String != "" {
			location.ParentLocation = &entities.LocationRef{UUID: parent.String}
		}
		location.Tags = []entities.Tag{}
		location.Attributes = []entities.Attribute{}
		location.ChildLocations = []entities.LocationRef{}

		locations = append(locations, location)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate locations", err)
	}

	return locations, nil
}

// attachDetails loads tags and attributes; ids restricts the load, nil loads every row
func (a *LocationAdapter) attachDetails(ctx context.Context, locations []entities.Location, ids []string) error {
	byID := make(map[string]*entities.Location, len(locations))
	for i := range locations {
		byID[locations[i].ID] = &locations[i]
	}

	tags := a.db.Select("location_id", "uuid", "name", "display").From(locationTagsTable)
	attributes := a.db.Select("location_id", "uuid", "type_uuid", "type_display", "value").From(locationAttributesTable)
	if ids != nil {
		tags = tags.Where(goqu.C("location_id").In(ids))
		attributes = attributes.Where(goqu.C("location_id").In(ids))
	}

	query, args, err := tags.Order(goqu.C("location_id").Asc(), goqu.C("position").Asc()).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build tag query", err)
	}
	if err := a.scanEach(ctx, "location tags", query, args, func(rows *sql.Rows) error {
		var locationID string
		var tagUUID sql.NullString
		var tag entities.Tag
		if err := rows.Scan(&locationID, &tagUUID, &tag.Name, &tag.Display); err != nil {
			return err
		}
		tag.UUID = tagUUID.String
		if location, ok := byID[locationID]; ok {
			location.Tags = append(location.Tags, tag)
		}
		return nil
	}); err != nil {
		return err
	}

	query, args, err = attributes.Order(goqu.C("location_id").Asc(), goqu.C("position").Asc()).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build attribute query", err)
	}
	return a.scanEach(ctx, "location attributes", query, args, func(rows *sql.Rows) error {
		var locationID string
		var attributeUUID, typeUUID sql.NullString
		var attribute entities.Attribute
		if err := rows.Scan(&locationID, &attributeUUID, &typeUUID, &attribute.AttributeType.Display, &attribute.Value); err != nil {
			return err
		}
		attribute.UUID = attributeUUID.String
		attribute.AttributeType.UUID = typeUUID.String
		if location, ok := byID[locationID]; ok {
			location.Attributes = append(location.Attributes, attribute)
		}
		return nil
	})
}

func (a *LocationAdapter) scanEach(ctx context.Context, what, query string, args []interface{}, scan func(*sql.Rows) error) error {
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to load "+what, err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return apperrors.NewInternalError("failed to scan "+what, err)
		}
	}
	if err := rows.Err(); err != nil {
		return apperrors.NewInternalError("failed to iterate "+what, err)
	}
	return nil
}

// linkChildren fills each parent's ChildLocations from children whose parent_uuid names it,
// and gives every child's parent reference the parent's display
func linkChildren(parents []entities.Location, children []entities.Location) {
	byKey := make(map[string]*entities.Location, len(parents)*2)
	for i := range parents {
		for _, key := range []string{parents[i].ID, parents[i].UUID} {
			if _, exists := byKey[key]; key != "" && !exists {
				byKey[key] = &parents[i]
			}
		}
	}

	for i := range children {
		child := &children[i]
		if child.IsRoot() {
			continue
		}
		parent, ok := byKey[child.ParentLocation.UUID]
		if !ok {
			continue
		}
		parent.ChildLocations = append(parent.ChildLocations, child.Ref())
		child.ParentLocation.Display = parent.Display
	}
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
