package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	apperrors "pfagent/internal/errors"
)

// InstanceConfig identifies one managed PingFederate instance. The inventory
// is static operator-supplied configuration, loaded wholesale on each read.
type InstanceConfig struct {
	ID      string `yaml:"id" validate:"required"`
	Name    string `yaml:"name" validate:"required"`
	Env     string `yaml:"env" validate:"required,oneof=dev stage prod uat dr"`
	BaseURL string `yaml:"base_url" validate:"required,url"`
}

// Inventory holds the configured instance set.
type Inventory struct {
	Instances []InstanceConfig `yaml:"instances" validate:"required,min=1,dive"`
}

// LoadInventory reads and validates the instance inventory file.
func LoadInventory(path string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewConfigError(fmt.Sprintf("failed to read inventory file %s", path), err)
	}

	var inv Inventory
	if err := yaml.Unmarshal(data, &inv); err != nil {
		return nil, apperrors.NewConfigError("failed to parse inventory file", err)
	}

	if err := validator.New().Struct(&inv); err != nil {
		return nil, apperrors.NewConfigError("invalid inventory", err)
	}

	seen := make(map[string]bool, len(inv.Instances))
	for _, inst := range inv.Instances {
		if seen[inst.ID] {
			return nil, apperrors.NewConfigError("duplicate instance id in inventory: "+inst.ID, nil)
		}
		seen[inst.ID] = true
	}

	return &inv, nil
}

// ByID returns the instance with the given id.
func (inv *Inventory) ByID(instanceID string) (*InstanceConfig, error) {
	for i := range inv.Instances {
		if inv.Instances[i].ID == instanceID {
			return &inv.Instances[i], nil
		}
	}
	return nil, apperrors.NewNotFoundError("instance", instanceID)
}
