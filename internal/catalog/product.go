// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package catalog

import "fmt"

// Product identifies the kind of target a catalog describes.
type Product string

const (
	Elasticsearch Product = "elasticsearch"
	Kibana        Product = "kibana"
	Logstash      Product = "logstash"
)

// Products lists all products with an embedded catalog.
var Products = []Product{Elasticsearch, Kibana, Logstash}

// DisplayName is the product name as shown to users.
func (p Product) DisplayName() string {
	switch p {
	case Elasticsearch:
		return "Elasticsearch"
	case Kibana:
		return "Kibana"
	case Logstash:
		return "Logstash"
	}
	return string(p)
}

// ParseProduct converts s into a Product.
func ParseProduct(s string) (Product, error) {
	for _, p := range Products {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown product %q, supported products: %v", s, Products)
}

const (
	// ModeFull collects everything the catalog declares for a version.
	ModeFull = "full"
	// ModeLight skips expensive calls.
	ModeLight = "light"
)
