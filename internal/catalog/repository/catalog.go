package repository

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	catalogerrors "carrental/internal/catalog/errors"
	"carrental/pkg/model"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

//go:embed cars.yaml
var defaultCatalog []byte

// CatalogRepository is a read-only view of the fleet. It is loaded once at
// startup and never mutated afterwards.
type CatalogRepository interface {
	// All returns the cars in catalog order. The result is a copy.
	All() []model.Car
	FindByID(id string) (model.Car, bool)
	Len() int
}

type catalogFile struct {
	Cars []model.Car `json:"cars" yaml:"cars"`
}

type staticCatalog struct {
	cars []model.Car
	byID map[string]int
}

// Load reads the catalog at path, or the embedded default fleet when path is
// empty. The format is picked from the file extension (.yaml, .yml, .json, .jsonc).
func Load(path string) (CatalogRepository, error) {
	if path == "" {
		return Parse(defaultCatalog, FormatYAML)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return Parse(data, FormatYAML)
	case ".json", ".jsonc":
		return Parse(data, FormatJSON)
	default:
		return nil, fmt.Errorf("%w: %s", catalogerrors.ErrUnsupportedFormat, path)
	}
}

// Parse decodes a catalog document. JSON input may contain comments and
// trailing commas.
func Parse(data []byte, format string) (CatalogRepository, error) {
	var file catalogFile
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("%w: %v", catalogerrors.ErrInvalidCatalog, err)
		}
	case FormatJSON:
		if err := json.Unmarshal(jsonc.ToJSON(data), &file); err != nil {
			return nil, fmt.Errorf("%w: %v", catalogerrors.ErrInvalidCatalog, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", catalogerrors.ErrUnsupportedFormat, format)
	}
	return NewStaticCatalog(file.Cars)
}

// NewStaticCatalog validates cars and takes a private copy of them.
func NewStaticCatalog(cars []model.Car) (CatalogRepository, error) {
	c := &staticCatalog{
		cars: make([]model.Car, 0, len(cars)),
		byID: make(map[string]int, len(cars)),
	}

	for i, car := range cars {
		if err := validateCar(car); err != nil {
			return nil, fmt.Errorf("%w: car #%d: %v", catalogerrors.ErrInvalidCatalog, i, err)
		}
		if _, exists := c.byID[car.ID]; exists {
			return nil, fmt.Errorf("%w: %s", catalogerrors.ErrDuplicateCarID, car.ID)
		}
		c.byID[car.ID] = len(c.cars)
		c.cars = append(c.cars, cloneCar(car))
	}

	return c, nil
}

func validateCar(car model.Car) error {
	switch {
	case strings.TrimSpace(car.ID) == "":
		return fmt.Errorf("id is required")
	case car.Brand == "":
		return fmt.Errorf("car %s: brand is required", car.ID)
	case car.Type == "":
		return fmt.Errorf("car %s: type is required", car.ID)
	case car.Seats <= 0:
		return fmt.Errorf("car %s: seats must be positive, got %d", car.ID, car.Seats)
	case !(car.PricePerDay > 0) || math.IsInf(car.PricePerDay, 0):
		return fmt.Errorf("car %s: price_per_day must be a positive finite number, got %v", car.ID, car.PricePerDay)
	}
	return nil
}

// cloneCar copies the car so callers never share its features slice.
// Features are kept exactly as listed; a missing list becomes empty.
func cloneCar(car model.Car) model.Car {
	if car.Features == nil {
		car.Features = []string{}
		return car
	}
	car.Features = slices.Clone(car.Features)
	return car
}

func (c *staticCatalog) All() []model.Car {
	out := make([]model.Car, len(c.cars))
	for i, car := range c.cars {
		out[i] = cloneCar(car)
	}
	return out
}

func (c *staticCatalog) FindByID(id string) (model.Car, bool) {
	i, ok := c.byID[id]
	if !ok {
		return model.Car{}, false
	}
	return cloneCar(c.cars[i]), true
}

func (c *staticCatalog) Len() int {
	return len(c.cars)
}
