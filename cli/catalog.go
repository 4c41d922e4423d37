package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/fteops/dutyrecon/models"
)

// Catalog is the file-backed broker/format directory. The GUI deployment
// reads these from the relational catalog; the CLI reads them from a YAML
// file with the same shape.
type Catalog struct {
	Brokers []models.Broker
	Formats []models.Format

	brokersByID map[uuid.UUID]models.Broker
	formatsByID map[uuid.UUID]models.Format
}

// brokerSpec and formatSpec mirror the models with string IDs; yaml.v3 does
// not decode UUIDs from strings on its own.
type brokerSpec struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	AuthRequired bool   `yaml:"auth_required"`
	OTPURI       string `yaml:"otp_uri"`
	IsActive     bool   `yaml:"is_active"`
}

type formatSpec struct {
	ID                 string                 `yaml:"id"`
	Name               string                 `yaml:"name"`
	TemplateIdentifier string                 `yaml:"template_identifier"`
	TemplatePayload    models.TemplatePayload `yaml:"template_payload"`
	IsActive           bool                   `yaml:"is_active"`
}

type catalogSpec struct {
	Brokers []brokerSpec `yaml:"brokers"`
	Formats []formatSpec `yaml:"formats"`
}

// LoadCatalog reads and indexes a catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	var spec catalogSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	c := &Catalog{
		brokersByID: make(map[uuid.UUID]models.Broker, len(spec.Brokers)),
		formatsByID: make(map[uuid.UUID]models.Format, len(spec.Formats)),
	}
	for _, bs := range spec.Brokers {
		id, err := uuid.Parse(bs.ID)
		if err != nil {
			return nil, fmt.Errorf("broker %q has invalid id: %w", bs.Name, err)
		}
		b := models.Broker{
			ID:           id,
			Name:         bs.Name,
			Username:     bs.Username,
			Password:     bs.Password,
			AuthRequired: bs.AuthRequired,
			OTPURI:       bs.OTPURI,
			IsActive:     bs.IsActive,
		}
		if err := b.Validate(); err != nil {
			return nil, err
		}
		c.Brokers = append(c.Brokers, b)
		c.brokersByID[id] = b
	}
	for _, fs := range spec.Formats {
		id, err := uuid.Parse(fs.ID)
		if err != nil {
			return nil, fmt.Errorf("format %q has invalid id: %w", fs.Name, err)
		}
		f := models.Format{
			ID:                 id,
			Name:               fs.Name,
			TemplateIdentifier: fs.TemplateIdentifier,
			TemplatePayload:    fs.TemplatePayload,
			IsActive:           fs.IsActive,
		}
		c.Formats = append(c.Formats, f)
		c.formatsByID[id] = f
	}
	return c, nil
}

// Broker resolves a broker by ID.
func (c *Catalog) Broker(id uuid.UUID) (models.Broker, error) {
	b, ok := c.brokersByID[id]
	if !ok {
		return models.Broker{}, fmt.Errorf("broker %s not in catalog", id)
	}
	return b, nil
}

// Format resolves a format by ID.
func (c *Catalog) Format(id uuid.UUID) (models.Format, error) {
	f, ok := c.formatsByID[id]
	if !ok {
		return models.Format{}, fmt.Errorf("format %s not in catalog", id)
	}
	return f, nil
}

// FindBroker resolves a broker by name (case-insensitive) or ID string. An
// empty selector picks the single active broker if there is exactly one.
func (c *Catalog) FindBroker(selector string) (models.Broker, error) {
	if selector == "" {
		return c.onlyActiveBroker()
	}
	if id, err := uuid.Parse(selector); err == nil {
		return c.Broker(id)
	}
	for _, b := range c.Brokers {
		if strings.EqualFold(b.Name, selector) {
			return b, nil
		}
	}
	return models.Broker{}, fmt.Errorf("broker %q not in catalog", selector)
}

// FindFormat resolves a format by name (case-insensitive) or ID string. An
// empty selector picks the single active format if there is exactly one.
func (c *Catalog) FindFormat(selector string) (models.Format, error) {
	if selector == "" {
		return c.onlyActiveFormat()
	}
	if id, err := uuid.Parse(selector); err == nil {
		return c.Format(id)
	}
	for _, f := range c.Formats {
		if strings.EqualFold(f.Name, selector) {
			return f, nil
		}
	}
	return models.Format{}, fmt.Errorf("format %q not in catalog", selector)
}

func (c *Catalog) onlyActiveBroker() (models.Broker, error) {
	var active []models.Broker
	for _, b := range c.Brokers {
		if b.IsActive {
			active = append(active, b)
		}
	}
	if len(active) != 1 {
		return models.Broker{}, fmt.Errorf("catalog has %d active brokers, pass --broker", len(active))
	}
	return active[0], nil
}

func (c *Catalog) onlyActiveFormat() (models.Format, error) {
	var active []models.Format
	for _, f := range c.Formats {
		if f.IsActive {
			active = append(active, f)
		}
	}
	if len(active) != 1 {
		return models.Format{}, fmt.Errorf("catalog has %d active formats, pass --format", len(active))
	}
	return active[0], nil
}
