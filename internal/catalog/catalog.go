// Package catalog serves the static saree product cards shown beside the chat widget.
package catalog

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed products.yaml
var productsYAML []byte

// Product is one static product card.
type Product struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Fabric      string `yaml:"fabric"`
	Color       string `yaml:"color"`
	Price       string `yaml:"price"`
	Description string `yaml:"description"`
	Image       string `yaml:"image"`
}

// Load decodes the embedded product cards.
func Load() ([]Product, error) {
	var doc struct {
		Products []Product `yaml:"products"`
	}
	if err := yaml.Unmarshal(productsYAML, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}
	return doc.Products, nil
}
