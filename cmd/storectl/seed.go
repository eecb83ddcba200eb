package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/example/chat-storefront/internal/app"
	"github.com/example/chat-storefront/internal/domain/catalog"
)

var seedDryRun bool

// seedFile is the on-disk catalog format. JSON files parse too, since
// YAML is a superset.
type seedFile struct {
	Products []seedProduct `yaml:"products"`
}

type seedProduct struct {
	Name        string   `yaml:"name"`
	Price       int64    `yaml:"price"`
	Stock       int      `yaml:"stock_level"`
	Tags        []string `yaml:"tags"`
	Description string   `yaml:"description"`
	Category    string   `yaml:"category"`
}

func (p seedProduct) input() catalog.CreateInput {
	return catalog.CreateInput{
		Name:        p.Name,
		Price:       p.Price,
		StockLevel:  p.Stock,
		Tags:        p.Tags,
		Description: p.Description,
		Category:    p.Category,
	}
}

var seedCmd = &cobra.Command{
	Use:   "seed [file]",
	Short: "Load products from a YAML or JSON file",
	Long: `Creates one catalog product per entry under "products".

Example:
  products:
    - name: Red Sneakers
      price: 15000
      stock_level: 4
      tags: [red, sneakers, shoes]
      category: footwear`,
	Args: cobra.ExactArgs(1),
	RunE: runSeed,
}

func loadSeedFile(path string) (*seedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	if len(f.Products) == 0 {
		return nil, fmt.Errorf("seed file %s has no products", path)
	}
	return &f, nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	f, err := loadSeedFile(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if seedDryRun {
		for i, p := range f.Products {
			if p.Name == "" || p.Price <= 0 || p.Stock < 0 {
				return fmt.Errorf("product %d (%q): invalid name, price or stock", i+1, p.Name)
			}
		}
		fmt.Fprintf(out, "%d products OK\n", len(f.Products))
		return nil
	}

	return withApp(cmd, func(a *app.App) error {
		for i, p := range f.Products {
			created, err := a.Catalog.Create(cmd.Context(), p.input())
			if err != nil {
				return fmt.Errorf("product %d (%q): %w", i+1, p.Name, err)
			}
			fmt.Fprintf(out, "created %s  %s\n", created.ID, created.Name)
		}
		fmt.Fprintf(out, "seeded %d products\n", len(f.Products))
		return nil
	})
}
