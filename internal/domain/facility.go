package domain

import (
	"strings"
	"time"
)

// EnergyType is the generation technology of a facility.
type EnergyType string

const (
	EnergyTypeSolar      EnergyType = "Solar"
	EnergyTypeWind       EnergyType = "Wind"
	EnergyTypeHydro      EnergyType = "Hydro"
	EnergyTypeGeothermal EnergyType = "Geothermal"
	EnergyTypeBiomass    EnergyType = "Biomass"
	EnergyTypeNuclear    EnergyType = "Nuclear"
	EnergyTypeOther      EnergyType = "Other"
)

var energyTypes = []EnergyType{
	EnergyTypeSolar,
	EnergyTypeWind,
	EnergyTypeHydro,
	EnergyTypeGeothermal,
	EnergyTypeBiomass,
	EnergyTypeNuclear,
	EnergyTypeOther,
}

// ParseEnergyType matches s case-insensitively against the known energy types.
func ParseEnergyType(s string) (EnergyType, error) {
	s = strings.TrimSpace(s)
	for _, t := range energyTypes {
		if strings.EqualFold(string(t), s) {
			return t, nil
		}
	}
	return "", E(KindInvalidInput, "parse energy type", "unknown energy type %q", s)
}

// Facility is a registered renewable generation site. TotalGenerated is in
// MWh and Ordinal is the zero-based registration position.
type Facility struct {
	ID             string     `json:"id"`
	Ordinal        int        `json:"ordinal"`
	DisplayName    string     `json:"display_name"`
	Location       string     `json:"location"`
	EnergyType     EnergyType `json:"energy_type"`
	Capacity       uint64     `json:"capacity"`
	Active         bool       `json:"active"`
	TotalGenerated uint64     `json:"total_generated"`
	RegisteredAt   time.Time  `json:"registered_at"`
	RegisteredBy   Address    `json:"registered_by"`
}

// RegisterFacilityRequest carries the caller-supplied facility attributes.
type RegisterFacilityRequest struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Location    string `json:"location"`
	EnergyType  string `json:"energy_type"`
	Capacity    uint64 `json:"capacity"`
}
