package service

import (
	"time"

	catalogerrors "carrental/internal/catalog/errors"
	"carrental/internal/catalog/repository"
	apperrors "carrental/pkg/errors"
	"carrental/pkg/logger"
	"carrental/pkg/model"
	"carrental/pkg/pricing"
)

// Facets lists the distinct filter values present in the catalog.
type Facets struct {
	Brands []string `json:"brands"`
	Types  []string `json:"types"`
}

type CatalogService interface {
	Search(spec model.FilterSpec) []model.Car
	GetCar(id string) (model.Car, bool)
	Facets() Facets
	Quote(carID string, pickupDate, returnDate time.Time) (model.Quote, error)
}

type catalogService struct {
	repo repository.CatalogRepository
	log  *logger.Logger
}

func NewCatalogService(repo repository.CatalogRepository, log *logger.Logger) CatalogService {
	return &catalogService{
		repo: repo,
		log:  log,
	}
}

func (s *catalogService) Search(spec model.FilterSpec) []model.Car {
	cars := Apply(s.repo.All(), spec)
	s.log.Debug("Catalog search completed", "count", len(cars), "catalog_size", s.repo.Len())
	return cars
}

func (s *catalogService) GetCar(id string) (model.Car, bool) {
	return s.repo.FindByID(id)
}

func (s *catalogService) Facets() Facets {
	facets := Facets{Brands: []string{}, Types: []string{}}
	seenBrands := map[string]bool{}
	seenTypes := map[string]bool{}

	for _, car := range s.repo.All() {
		if !seenBrands[car.Brand] {
			seenBrands[car.Brand] = true
			facets.Brands = append(facets.Brands, car.Brand)
		}
		if !seenTypes[car.Type] {
			seenTypes[car.Type] = true
			facets.Types = append(facets.Types, car.Type)
		}
	}
	return facets
}

// Quote prices a prospective rental of carID. Unlike pricing.Quote it checks
// the date order, since its callers are request handlers.
func (s *catalogService) Quote(carID string, pickupDate, returnDate time.Time) (model.Quote, error) {
	car, ok := s.repo.FindByID(carID)
	if !ok {
		return model.Quote{}, apperrors.NotFoundWithID("Car", carID).WithCause(catalogerrors.ErrCarNotFound)
	}
	if !returnDate.After(pickupDate) {
		return model.Quote{}, apperrors.Validation("return_date must be after pickup_date", map[string]any{
			"fields": map[string]string{"return_date": "return_date must be after pickup_date"},
		})
	}
	return pricing.Quote(pickupDate, returnDate, car.PricePerDay), nil
}
