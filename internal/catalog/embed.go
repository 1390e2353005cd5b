// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package catalog

import (
	_ "embed"
	"fmt"
	"sync"
)

var (
	//go:embed elastic-rest.yml
	elasticsearchCatalog []byte
	//go:embed kibana-rest.yml
	kibanaCatalog []byte
	//go:embed logstash-rest.yml
	logstashCatalog []byte

	embedded = map[Product]*lazyCatalog{
		Elasticsearch: {},
		Kibana:        {},
		Logstash:      {},
	}
)

type lazyCatalog struct {
	once    sync.Once
	catalog *Catalog
	err     error
}

func source(p Product) []byte {
	switch p {
	case Kibana:
		return kibanaCatalog
	case Logstash:
		return logstashCatalog
	default:
		return elasticsearchCatalog
	}
}

// ForProduct returns the embedded catalog of product p. Catalogs are loaded once per process on first
// use and shared read-only afterwards.
func ForProduct(p Product) (*Catalog, error) {
	lc, ok := embedded[p]
	if !ok {
		return nil, fmt.Errorf("no catalog for product %q", p)
	}
	lc.once.Do(func() {
		lc.catalog, lc.err = Load(p, source(p))
	})
	return lc.catalog, lc.err
}
