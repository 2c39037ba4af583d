package model

import "gonum.org/v1/gonum/spatial/r3"

// Occluder is a celestial body abstracted as a sphere. It blocks line of
// sight and contributes brightness temperature to receivers that see it.
type Occluder struct {
	Name     string  `yaml:"name" json:"name"`
	Position r3.Vec  `yaml:"-" json:"-"`
	Radius   float64 `yaml:"radius_m" json:"radius_m"`

	// Temperature is the effective brightness temperature in kelvin. For
	// stars it is the surface temperature, scaled with frequency at use.
	Temperature float64 `yaml:"temperature" json:"temperature"`
	IsStar      bool    `yaml:"star" json:"star"`
}
