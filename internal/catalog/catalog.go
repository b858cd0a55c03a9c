// Package catalog holds the reference data bookings are priced
// against: packages, add-ons, equipment pools and catering services.
// Entries are loaded once at startup and are immutable from the
// engine's point of view; prices are snapshotted into bookings.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"studiobook/internal/models"
)

var (
	ErrNotFound = errors.New("catalog entry not found")
	ErrInactive = errors.New("catalog entry is not active")
)

// File is the on-disk catalog shape.
type File struct {
	Packages         []models.Package         `yaml:"packages"`
	AddOns           []models.AddOn           `yaml:"add_ons"`
	Equipment        []models.Equipment       `yaml:"equipment"`
	CateringServices []models.CateringService `yaml:"catering_services"`
}

type Catalog struct {
	mu        sync.RWMutex
	packages  map[int64]models.Package
	addOns    map[int64]models.AddOn
	equipment map[int64]models.Equipment
	catering  map[int64]models.CateringService
}

func New(file File) (*Catalog, error) {
	if err := Validate(file); err != nil {
		return nil, err
	}

	c := &Catalog{
		packages:  make(map[int64]models.Package, len(file.Packages)),
		addOns:    make(map[int64]models.AddOn, len(file.AddOns)),
		equipment: make(map[int64]models.Equipment, len(file.Equipment)),
		catering:  make(map[int64]models.CateringService, len(file.CateringServices)),
	}
	for _, p := range file.Packages {
		c.packages[p.ID] = p
	}
	for _, a := range file.AddOns {
		c.addOns[a.ID] = a
	}
	for _, e := range file.Equipment {
		c.equipment[e.ID] = e
	}
	for _, s := range file.CateringServices {
		c.catering[s.ID] = s
	}
	return c, nil
}

// Validate rejects catalogs that would let bad data into bookings:
// zero/duplicate ids, negative prices, inverted catering bounds.
func Validate(file File) error {
	seen := make(map[string]bool)
	check := func(kind string, id int64, name string) error {
		if id == 0 {
			return fmt.Errorf("%s %q has invalid id 0", kind, name)
		}
		key := fmt.Sprintf("%s:%d", kind, id)
		if seen[key] {
			return fmt.Errorf("duplicate %s id %d", kind, id)
		}
		seen[key] = true
		return nil
	}

	for _, p := range file.Packages {
		if err := check("package", p.ID, p.Name); err != nil {
			return err
		}
		if p.BasePrice < 0 {
			return fmt.Errorf("package %q has negative base price", p.Name)
		}
		if p.DurationHours <= 0 {
			return fmt.Errorf("package %q has non-positive duration", p.Name)
		}
	}
	for _, a := range file.AddOns {
		if err := check("add-on", a.ID, a.Name); err != nil {
			return err
		}
		if a.UnitPrice < 0 {
			return fmt.Errorf("add-on %q has negative unit price", a.Name)
		}
	}
	for _, e := range file.Equipment {
		if err := check("equipment", e.ID, e.Name); err != nil {
			return err
		}
		if e.DailyRate < 0 || e.SecurityDeposit < 0 {
			return fmt.Errorf("equipment %q has negative pricing", e.Name)
		}
		if e.StockQuantity < 1 {
			return fmt.Errorf("equipment %q has no stock", e.Name)
		}
	}
	for _, s := range file.CateringServices {
		if err := check("catering service", s.ID, s.Name); err != nil {
			return err
		}
		if s.UnitPrice < 0 {
			return fmt.Errorf("catering service %q has negative unit price", s.Name)
		}
		if s.MinOrderQuantity < 1 || s.MaxOrderQuantity < s.MinOrderQuantity {
			return fmt.Errorf("catering service %q has invalid order bounds [%d, %d]",
				s.Name, s.MinOrderQuantity, s.MaxOrderQuantity)
		}
	}
	return nil
}

func (c *Catalog) GetPackage(ctx context.Context, id int64) (*models.Package, error) {
	c.mu.RLock()
	p, ok := c.packages[id]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("package %d: %w", id, ErrNotFound)
	}
	if !p.IsActive {
		return nil, fmt.Errorf("package %d: %w", id, ErrInactive)
	}
	return &p, nil
}

func (c *Catalog) GetAddOn(ctx context.Context, id int64) (*models.AddOn, error) {
	c.mu.RLock()
	a, ok := c.addOns[id]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("add-on %d: %w", id, ErrNotFound)
	}
	if !a.IsActive {
		return nil, fmt.Errorf("add-on %d: %w", id, ErrInactive)
	}
	return &a, nil
}

func (c *Catalog) GetEquipment(ctx context.Context, id int64) (*models.Equipment, error) {
	c.mu.RLock()
	e, ok := c.equipment[id]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("equipment %d: %w", id, ErrNotFound)
	}
	if !e.IsActive {
		return nil, fmt.Errorf("equipment %d: %w", id, ErrInactive)
	}
	return &e, nil
}

func (c *Catalog) GetCateringService(ctx context.Context, id int64) (*models.CateringService, error) {
	c.mu.RLock()
	s, ok := c.catering[id]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("catering service %d: %w", id, ErrNotFound)
	}
	if !s.IsActive {
		return nil, fmt.Errorf("catering service %d: %w", id, ErrInactive)
	}
	return &s, nil
}

func (c *Catalog) ListPackages(ctx context.Context) ([]*models.Package, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*models.Package, 0, len(c.packages))
	for id := range c.packages {
		if !c.packages[id].IsActive {
			continue
		}
		p := c.packages[id]
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
