package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/locationhierarchy/internal/adapters/database"
	"github.com/zatekoja/locationhierarchy/internal/adapters/search"
	"github.com/zatekoja/locationhierarchy/internal/application/services"
	"github.com/zatekoja/locationhierarchy/internal/domain/entities"
	"github.com/zatekoja/locationhierarchy/internal/domain/repositories"
	"github.com/zatekoja/locationhierarchy/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/locationhierarchy/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/locationhierarchy/internal/infrastructure/observability"
	"github.com/zatekoja/locationhierarchy/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	observability.InitLogger("location-seed", cfg.App.Env)

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to DB")
	}
	defer pgClient.Close()

	ctx := context.Background()
	locationRepo := database.NewLocationAdapter(pgClient)
	if err := locationRepo.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure schema")
	}

	if os.Getenv("RESET_DB") == "true" {
		log.Info().Msg("RESET_DB=true detected, truncating location tables before seeding")
		if _, err := pgClient.DB().ExecContext(ctx, `TRUNCATE TABLE location_attributes, location_tags, locations CASCADE`); err != nil {
			log.Fatal().Err(err).Msg("failed to truncate tables")
		}
	}

	var searchRepo repositories.LocationSearchRepository
	if cfg.Typesense.Enabled {
		tsClient, err := typesense.NewClient(&cfg.Typesense)
		if err != nil {
			log.Warn().Err(err).Msg("Typesense unavailable; skipping indexing")
		} else {
			adapter := search.NewTypesenseLocationAdapter(tsClient)
			if err := adapter.InitSchema(ctx); err != nil {
				log.Warn().Err(err).Msg("failed to init Typesense schema")
			}
			searchRepo = adapter
		}
	}

	service := services.NewLocationService(locationRepo, searchRepo, nil, nil, nil)

	// Parents precede children so every upsert can resolve its parent
	seeded := 0
	for _, location := range demoHierarchy() {
		location := location
		if _, err := service.Upsert(ctx, &location); err != nil {
			log.Fatal().Err(err).Str("location", location.Name).Msg("failed to seed location")
		}
		seeded++
	}

	log.Info().Int("locations", seeded).Msg("seeding complete")
}

func tag(kind entities.TagKind) entities.Tag {
	return entities.Tag{UUID: uuid.NewString(), Name: kind.Label(), Display: kind.Label()}
}

func attribute(kind entities.AttributeKind, value string) entities.Attribute {
	return entities.Attribute{
		UUID:          uuid.NewString(),
		AttributeType: entities.AttributeType{Display: kind.Label()},
		Value:         value,
	}
}

func child(parent *entities.Location, name string, tags []entities.Tag, attributes ...entities.Attribute) entities.Location {
	id := uuid.NewString()
	return entities.Location{
		ID:             id,
		UUID:           id,
		Name:           name,
		Display:        name,
		ParentLocation: &entities.LocationRef{UUID: parent.ID, Display: parent.Display},
		Tags:           tags,
		Attributes:     attributes,
	}
}

// demoHierarchy builds a small hospital: a general ward with two bays of beds,
// a treatment room, and a pharmacy with dispensing cabinets.
func demoHierarchy() []entities.Location {
	hospitalID := uuid.NewString()
	hospital := entities.Location{
		ID:          hospitalID,
		UUID:        hospitalID,
		Name:        "General Hospital",
		Display:     "General Hospital",
		Description: "Main campus",
	}

	ward := child(&hospital, "Ward A", []entities.Tag{tag(entities.TagKindLoginLocation)},
		attribute(entities.AttributeKindForms, "admission-form"),
	)
	bay1 := child(&ward, "Bay 1", nil, attribute(entities.AttributeKindPatientsPerBed, "2"))
	bay1.AreChildLocationsBeds = true
	bay2 := child(&ward, "Bay 2", nil)
	bay2.AreChildLocationsBeds = true

	treatment := child(&ward, "Treatment Room 1", []entities.Tag{
		tag(entities.TagKindTreatmentRoom),
		tag(entities.TagKindMinorProcedureLocation),
	}, attribute(entities.AttributeKindBillingConcept, "treatment-room-fee"))

	pharmacy := child(&hospital, "Pharmacy", []entities.Tag{
		tag(entities.TagKindStore),
		tag(entities.TagKindMainStore),
		tag(entities.TagKindLoginLocation),
	})
	pharmacy.AreChildLocationsCabinets = true

	locations := []entities.Location{hospital, ward, bay1, bay2, treatment, pharmacy}
	for _, name := range []string{"Bed 1", "Bed 2"} {
		locations = append(locations, child(&bay1, name, []entities.Tag{tag(entities.TagKindBedLocation)}))
	}
	locations = append(locations, child(&bay2, "Bed 3", []entities.Tag{tag(entities.TagKindBedLocation)}))
	for _, name := range []string{"Cabinet A", "Cabinet B"} {
		locations = append(locations, child(&pharmacy, name, []entities.Tag{tag(entities.TagKindCabinetLocation)}))
	}
	return locations
}
