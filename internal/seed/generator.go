// Package seed generates sample catalog items and loads them into a running
// catalog search service through its bulk endpoint.
package seed

import (
	"fmt"
	"math/rand/v2"

	"github.com/shopspring/decimal"

	"github.com/utafrali/catalog-search/internal/service"
	"github.com/utafrali/catalog-search/pkg/slug"
)

type category struct {
	Name  string
	Types []string
	// Price bounds in cents.
	MinPrice, MaxPrice int64
}

var categories = []category{
	{"Electronics", []string{"Smartphone", "Laptop", "Tablet", "Headphones", "Smartwatch", "Monitor"}, 4900, 249900},
	{"Home & Kitchen", []string{"Coffee Maker", "Blender", "Toaster", "Chef Knife", "Cookware Set"}, 1500, 59900},
	{"Books", []string{"Novel", "Cookbook", "Travel Guide", "Biography", "Poetry Collection"}, 500, 6000},
	{"Sports", []string{"Running Shoes", "Yoga Mat", "Dumbbell Set", "Tennis Racket", "Cycling Helmet"}, 1200, 39900},
	{"Clothing", []string{"Rain Jacket", "Wool Sweater", "Denim Jeans", "Linen Shirt", "Sneakers"}, 1900, 24900},
	{"Toys", []string{"Puzzle", "Building Blocks", "Board Game", "Plush Bear", "Model Train"}, 900, 19900},
}

var (
	brands     = []string{"Acme", "Northwind", "Globex", "Initech", "Umbrella", "Stark", "Wayne", "Hooli"}
	adjectives = []string{"Classic", "Compact", "Premium", "Ultra", "Eco", "Pro", "Smart", "Deluxe", "Essential", "Vintage"}
	details    = []string{
		"Built to last with carefully selected materials.",
		"A customer favourite for everyday use.",
		"Designed for comfort and reliability.",
		"Lightweight and easy to carry anywhere.",
		"Backed by a two year manufacturer warranty.",
	}
)

// Generate returns n items built deterministically from seed. The same
// seed always yields the same items.
func Generate(n int, seed uint64) []service.CreateItemInput {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	items := make([]service.CreateItemInput, 0, n)

	for i := 0; i < n; i++ {
		cat := categories[i%len(categories)]
		typ := cat.Types[rng.IntN(len(cat.Types))]
		brand := brands[rng.IntN(len(brands))]
		adj := adjectives[rng.IntN(len(adjectives))]

		cents := cat.MinPrice + rng.Int64N(cat.MaxPrice-cat.MinPrice+1)
		active := rng.IntN(10) != 0

		stock := rng.IntN(500)
		if rng.IntN(8) == 0 {
			stock = 0
		}

		items = append(items, service.CreateItemInput{
			Name: fmt.Sprintf("%s %s %s %d", brand, adj, typ, 100+i),
			Description: fmt.Sprintf("%s %s from %s. %s",
				adj, typ, brand, details[rng.IntN(len(details))]),
			Category: cat.Name,
			Price:    decimal.New(cents, -2),
			Stock:    stock,
			Tags:     tagsFor(cat.Name, typ, brand),
			IsActive: &active,
		})
	}
	return items
}

func tagsFor(values ...string) []string {
	tags := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		t := slug.Tag(v)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
	}
	return tags
}
