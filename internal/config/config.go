package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models roastline.yml.
type Config struct {
	Catalog struct {
		Coffees []CoffeeSeed `yaml:"coffees"`
		Shops   []ShopSeed   `yaml:"shops"`
	} `yaml:"catalog"`
	Inventory struct {
		Opening struct {
			GreenKg   map[string]float64 `yaml:"green_kg"`
			RoastedKg map[string]float64 `yaml:"roasted_kg"`
		} `yaml:"opening"`
	} `yaml:"inventory"`
	Server struct {
		BasePath string `yaml:"base_path"`
		Auth     struct {
			JWTSecret              string `yaml:"jwt_secret"`
			AllowLegacyActorHeader bool   `yaml:"allow_legacy_actor_header"`
		} `yaml:"auth"`
	} `yaml:"server"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

type CoffeeSeed struct {
	ID            string  `yaml:"id"`
	Name          string  `yaml:"name"`
	DefaultPackKg float64 `yaml:"default_pack_kg"`
}

type ShopSeed struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret"`
	Actions        []string `yaml:"actions"`
	Enabled        *bool    `yaml:"enabled"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// Load reads and validates config from the workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; run rl init to create a default one", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if len(c.Catalog.Coffees) == 0 {
		return fmt.Errorf("config.catalog.coffees is required")
	}
	coffeeIDs := map[string]bool{}
	for _, coffee := range c.Catalog.Coffees {
		if coffee.ID == "" {
			return fmt.Errorf("config.catalog.coffees contains empty id")
		}
		if coffee.Name == "" {
			return fmt.Errorf("coffee %s has empty name", coffee.ID)
		}
		if coffeeIDs[coffee.ID] {
			return fmt.Errorf("duplicate coffee id %s", coffee.ID)
		}
		if coffee.DefaultPackKg < 0 {
			return fmt.Errorf("coffee %s has negative default_pack_kg", coffee.ID)
		}
		coffeeIDs[coffee.ID] = true
	}
	shopIDs := map[string]bool{}
	for _, shop := range c.Catalog.Shops {
		if shop.ID == "" {
			return fmt.Errorf("config.catalog.shops contains empty id")
		}
		if shop.Name == "" {
			return fmt.Errorf("shop %s has empty name", shop.ID)
		}
		if shopIDs[shop.ID] {
			return fmt.Errorf("duplicate shop id %s", shop.ID)
		}
		shopIDs[shop.ID] = true
	}
	for coffeeID, kg := range c.Inventory.Opening.GreenKg {
		if !coffeeIDs[coffeeID] {
			return fmt.Errorf("opening green stock references unknown coffee %s", coffeeID)
		}
		if kg < 0 {
			return fmt.Errorf("opening green stock for %s is negative", coffeeID)
		}
	}
	for coffeeID, kg := range c.Inventory.Opening.RoastedKg {
		if !coffeeIDs[coffeeID] {
			return fmt.Errorf("opening roasted stock references unknown coffee %s", coffeeID)
		}
		if kg < 0 {
			return fmt.Errorf("opening roasted stock for %s is negative", coffeeID)
		}
	}
	for i, hook := range c.Webhooks {
		if hook.Enabled != nil && !*hook.Enabled {
			continue
		}
		if hook.URL == "" {
			return fmt.Errorf("webhook %d has empty url", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("webhook %d has negative timeout_seconds", i)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "roastline.yml")
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// GenerateDefault returns the default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `catalog:
  coffees:
    - id: bombora
      name: Bombora
      default_pack_kg: 1
    - id: fiver
      name: Fiver
      default_pack_kg: 1
    - id: ethiopia
      name: Ethiopia
      default_pack_kg: 1
    - id: brazil
      name: Brazil
      default_pack_kg: 1
  shops:
    - id: city
      name: Bunca City
    - id: berger
      name: "Bunca Berger Straße"
    - id: grueneburgweg
      name: "Bunca Grüneburgweg"

inventory:
  opening:
    green_kg:
      bombora: 120
      fiver: 80
      ethiopia: 60
      brazil: 90
    roasted_kg:
      bombora: 18
      fiver: 10
      ethiopia: 7
      brazil: 12

server:
  base_path: /v0
  auth:
    jwt_secret: ""
    allow_legacy_actor_header: true
`
