package model

type Car struct {
	ID           string   `json:"id" yaml:"id"`
	Brand        string   `json:"brand" yaml:"brand"`
	Model        string   `json:"model" yaml:"model"`
	Name         string   `json:"name" yaml:"name"`
	Type         string   `json:"type" yaml:"type"`
	Year         int      `json:"year" yaml:"year"`
	Transmission string   `json:"transmission" yaml:"transmission"`
	FuelType     string   `json:"fuel_type" yaml:"fuel_type"`
	Seats        int      `json:"seats" yaml:"seats"`
	PricePerDay  float64  `json:"price_per_day" yaml:"price_per_day"`
	Features     []string `json:"features" yaml:"features"`
	Description  string   `json:"description" yaml:"description"`
	Image        string   `json:"image" yaml:"image"`
}

// SortOrder selects the ordering of a filtered catalog view.
type SortOrder string

const (
	SortPriceAscending  SortOrder = "price_asc"
	SortPriceDescending SortOrder = "price_desc"
	SortNewestFirst     SortOrder = "newest"
)

func (s SortOrder) Valid() bool {
	switch s {
	case SortPriceAscending, SortPriceDescending, SortNewestFirst:
		return true
	}
	return false
}

// PriceRange is inclusive on both ends.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (p PriceRange) Contains(price float64) bool {
	return price >= p.Min && price <= p.Max
}

// FilterSpec describes a catalog query. A nil field means the filter is off.
type FilterSpec struct {
	Brand      *string     `json:"brand,omitempty"`
	Type       *string     `json:"type,omitempty"`
	PriceRange *PriceRange `json:"price_range,omitempty"`
	SortBy     *SortOrder  `json:"sort_by,omitempty"`
}
