package tiling

import (
	"encoding/json"
	"os"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/perimeterx/marshmallow"
)

// Options are the tiling and sharding parameters shared by the grid and the
// transcript sharder.
type Options struct {
	// TileWidth is the requested tile width in element coordinates. In tight
	// mode the effective width can be corrected upward.
	TileWidth float64 `validate:"required,gt=0" json:"tileWidth"`
	// TileOverlap is the width shared between two axis-adjacent tiles.
	TileOverlap float64 `default:"50" validate:"gte=0" json:"tileOverlap"`
	// CellKey names an existing cell-assignment column in the point dataset.
	CellKey string `json:"cellKey,omitempty"`
	// UnassignedValue is the sentinel in the CellKey column meaning "no
	// prior assignment". It is remapped to 0 before sharding.
	UnassignedValue string `json:"unassignedValue,omitempty"`
	// UsePrior propagates prior segmentation boundaries into the shards.
	UsePrior bool `json:"usePrior,omitempty"`
	// Workers bounds the number of tiles sharded concurrently.
	Workers int `default:"4" validate:"min=1" json:"workers"`
}

func (o *Options) UnmarshalJSON(data []byte) error {
	err := defaults.Set(o)
	if err != nil {
		return err
	}
	_, err = marshmallow.Unmarshal(data, o, marshmallow.WithExcludeKnownFieldsFromMap(true))
	if err != nil {
		return err
	}
	return o.Validate()
}

func (o *Options) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	return validate.Struct(o)
}

// LoadOptions reads Options from a JSON file, applying defaults and
// validating the result.
func LoadOptions(path string) (Options, error) {
	var opts Options
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, err
	}
	err = json.Unmarshal(data, &opts)
	return opts, err
}
